package enums

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder  OutboxAggregateType = "order"
	AggregateCoupon OutboxAggregateType = "coupon"
)

var aggregateTypes = values[OutboxAggregateType]{AggregateOrder, AggregateCoupon}

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

// OutboxEventType names a domain event relayed through the outbox.
type OutboxEventType string

const (
	EventOrderCreated       OutboxEventType = "order_created"
	EventOrderStatusChanged OutboxEventType = "order_status_changed"
	EventOrderCancelled     OutboxEventType = "order_cancelled"
	EventCouponRedeemed     OutboxEventType = "coupon_redeemed"
)

var outboxEventTypes = values[OutboxEventType]{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventOrderCancelled,
	EventCouponRedeemed,
}

func (e OutboxEventType) IsValid() bool { return outboxEventTypes.has(e) }
