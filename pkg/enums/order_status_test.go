package enums

import "testing"

func TestParseOrderStatus(t *testing.T) {
	for _, raw := range []string{"pending", "processing", "shipped", "delivered", "cancelled"} {
		status, err := ParseOrderStatus(raw)
		if err != nil {
			t.Fatalf("expected %q to parse: %v", raw, err)
		}
		if !status.IsValid() {
			t.Fatalf("expected %q to be valid", raw)
		}
	}
	for _, raw := range []string{"bogus", "", "Shipped", "canceled"} {
		if _, err := ParseOrderStatus(raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}

func TestOrderStatusCustomerCancellable(t *testing.T) {
	cases := map[OrderStatus]bool{
		OrderStatusPending:    true,
		OrderStatusProcessing: true,
		OrderStatusShipped:    false,
		OrderStatusDelivered:  false,
		OrderStatusCancelled:  false,
	}
	for status, want := range cases {
		if got := status.CustomerCancellable(); got != want {
			t.Fatalf("%s: expected cancellable=%v got %v", status, want, got)
		}
	}
}

func TestOrderStatusesReturnsCopy(t *testing.T) {
	statuses := OrderStatuses()
	statuses[0] = "mutated"
	if OrderStatuses()[0] != OrderStatusPending {
		t.Fatalf("expected OrderStatuses to return a copy")
	}
}

func TestParseDiscountType(t *testing.T) {
	if dt, err := ParseDiscountType("percentage"); err != nil || dt != DiscountTypePercentage {
		t.Fatalf("expected percentage, got %q err=%v", dt, err)
	}
	if _, err := ParseDiscountType("bogo"); err == nil {
		t.Fatalf("expected unknown discount type to fail")
	}
}

func TestParseErrorListsAllowedValues(t *testing.T) {
	_, err := ParsePaymentStatus("settled")
	if err == nil {
		t.Fatalf("expected unknown payment status to fail")
	}
	if got := err.Error(); got != `invalid payment status "settled" (allowed: [pending paid failed refunded])` {
		t.Fatalf("unexpected error %q", got)
	}
}

func TestOutboxEnumsMembership(t *testing.T) {
	if !EventCouponRedeemed.IsValid() || OutboxEventType("order_updated").IsValid() {
		t.Fatalf("unexpected event type membership")
	}
	if !AggregateCoupon.IsValid() || OutboxAggregateType("cart").IsValid() {
		t.Fatalf("unexpected aggregate membership")
	}
	if ProductStatus("archived").IsValid() {
		t.Fatalf("archived is not a product status")
	}
}
