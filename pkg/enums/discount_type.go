package enums

// DiscountType selects how a coupon value is applied to a subtotal.
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

var discountTypes = values[DiscountType]{DiscountTypePercentage, DiscountTypeFixed}

func (d DiscountType) IsValid() bool { return discountTypes.has(d) }

func ParseDiscountType(value string) (DiscountType, error) {
	return discountTypes.parse("discount type", value)
}
