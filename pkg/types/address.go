package types

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var addressValidate = validator.New(validator.WithRequiredStructEnabled())

// BillingAddress is the contact and billing block captured at checkout. Every
// field is required.
type BillingAddress struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required"`
	Address string `json:"address" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	ZipCode string `json:"zip_code" validate:"required"`
}

// Normalize trims surrounding whitespace from every field.
func (b BillingAddress) Normalize() BillingAddress {
	return BillingAddress{
		Name:    strings.TrimSpace(b.Name),
		Email:   strings.TrimSpace(b.Email),
		Phone:   strings.TrimSpace(b.Phone),
		Address: strings.TrimSpace(b.Address),
		City:    strings.TrimSpace(b.City),
		State:   strings.TrimSpace(b.State),
		ZipCode: strings.TrimSpace(b.ZipCode),
	}
}

// Validate returns a field -> reason map for every invalid field, or nil.
func (b BillingAddress) Validate() map[string]string {
	err := addressValidate.Struct(b.Normalize())
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"billing_address": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out["billing_address."+jsonFieldName(fe.Field())] = fe.Tag()
	}
	return out
}

// ShippingAddress is stored as submitted; its shape is not constrained.
type ShippingAddress map[string]any

func jsonFieldName(field string) string {
	switch field {
	case "ZipCode":
		return "zip_code"
	default:
		return strings.ToLower(field)
	}
}
