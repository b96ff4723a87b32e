package enums

// ProductStatus controls catalog visibility. Only active products are listed
// or purchasable.
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
	ProductStatusDraft    ProductStatus = "draft"
)

var productStatuses = values[ProductStatus]{ProductStatusActive, ProductStatusInactive, ProductStatusDraft}

func (p ProductStatus) IsValid() bool { return productStatuses.has(p) }
