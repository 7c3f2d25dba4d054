// utils/validation.go
package utils

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"orderdesk-backend/apperrors"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	AmountMaxDigits     = 10
	AmountDecimalPlaces = 2
)

var (
	customerCodeRegex = regexp.MustCompile(`^[A-Z0-9]+$`)

	MinOrderAmount = decimal.RequireFromString("0.01")

	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report json names so messages line up with the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("customer_code", func(fl validator.FieldLevel) bool {
		return ValidateCustomerCode(fl.Field().String())
	})
	return v
}

// ValidateCustomerCode checks the uppercase-letters-and-digits rule.
func ValidateCustomerCode(code string) bool {
	return customerCodeRegex.MatchString(code)
}

// ValidateStruct runs the `validate` tags on s and converts failures into a
// ValidationError keyed by json field name. It returns nil when s is valid.
func ValidateStruct(s any) *apperrors.ValidationError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	out := &apperrors.ValidationError{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out.Add("non_field_errors", err.Error())
		return out
	}
	for _, fe := range verrs {
		out.Add(fe.Field(), fieldMessage(fe))
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		if fe.Kind() == reflect.String {
			return "This field may not be blank."
		}
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "customer_code":
		return "Code must contain only uppercase letters and numbers"
	case "oneof":
		return fmt.Sprintf("\"%v\" is not a valid choice.", fe.Value())
	default:
		return fmt.Sprintf("Failed on the '%s' rule.", fe.Tag())
	}
}

// ValidateAmount applies the decimal(10,2) limits and the 0.01 minimum.
// It returns the messages for the amount field, or nil.
func ValidateAmount(d decimal.Decimal) []string {
	var msgs []string

	coef := d.Coefficient()
	digitCount := len(coef.Abs(coef).String())
	exp := int(d.Exponent())

	var digits, decimals int
	switch {
	case exp >= 0:
		digits, decimals = digitCount+exp, 0
	case -exp > digitCount:
		digits, decimals = -exp, -exp
	default:
		digits, decimals = digitCount, -exp
	}
	whole := digits - decimals

	if digits > AmountMaxDigits {
		msgs = append(msgs, fmt.Sprintf("Ensure that there are no more than %d digits in total.", AmountMaxDigits))
	}
	if decimals > AmountDecimalPlaces {
		msgs = append(msgs, fmt.Sprintf("Ensure that there are no more than %d decimal places.", AmountDecimalPlaces))
	}
	if whole > AmountMaxDigits-AmountDecimalPlaces {
		msgs = append(msgs, fmt.Sprintf("Ensure that there are no more than %d digits before the decimal point.", AmountMaxDigits-AmountDecimalPlaces))
	}
	if d.LessThan(MinOrderAmount) {
		msgs = append(msgs, "Ensure this value is greater than or equal to 0.01.")
	}
	return msgs
}
