// Package validator provides struct validation with engine-specific
// custom validators (enum fields, ISO 4217 currencies).
package validator

import (
	"github.com/go-playground/validator/v10"
)

// validCurrencies contains ISO 4217 currency codes.
var validCurrencies = map[string]bool{
	"AED": true, "AUD": true, "BRL": true, "CAD": true, "CHF": true,
	"CNY": true, "CZK": true, "DKK": true, "EUR": true, "GBP": true,
	"HKD": true, "HUF": true, "IDR": true, "ILS": true, "INR": true,
	"JPY": true, "KRW": true, "MXN": true, "MYR": true, "NOK": true,
	"NZD": true, "PHP": true, "PLN": true, "RON": true, "SEK": true,
	"SGD": true, "THB": true, "TRY": true, "TWD": true, "USD": true,
	"ZAR": true,
}

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("iso4217", validateISO4217)
	_ = validate.RegisterValidation("account_type", validateAccountType)
	_ = validate.RegisterValidation("category_type", validateCategoryType)
	_ = validate.RegisterValidation("pattern_type", validatePatternType)
	_ = validate.RegisterValidation("sign_convention", validateSignConvention)
}

// Struct validates a struct using the shared engine.
func Struct(v any) error {
	return validate.Struct(v)
}

func validateISO4217(fl validator.FieldLevel) bool {
	return validCurrencies[fl.Field().String()]
}

func validateAccountType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "bank", "credit_card", "brokerage", "mortgage", "cash", "other":
		return true
	}
	return false
}

func validateCategoryType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "expense", "income", "transfer", "asset", "liability":
		return true
	}
	return false
}

func validatePatternType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "regex", "substring", "exact", "merchant":
		return true
	}
	return false
}

func validateSignConvention(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "standard", "inverted":
		return true
	}
	return false
}
