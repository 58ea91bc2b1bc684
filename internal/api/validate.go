package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/erazemk/knjiznica/internal/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// Let numeric tags (gte, lte) apply to decimal amounts.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		d, ok := field.Interface().(decimal.Decimal)
		if !ok {
			return nil
		}
		f, _ := d.Float64()
		return f
	}, decimal.Decimal{})

	v.RegisterValidation("cover", func(fl validator.FieldLevel) bool {
		return model.Cover(fl.Field().String()).Valid()
	})
	v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return model.ValidRole(fl.Field().String())
	})
	v.RegisterValidation("booktext", func(fl validator.FieldLevel) bool {
		return utf8.RuneCountInString(fl.Field().String()) <= model.MaxTextLength
	})
	// Runs on the float64 produced by the decimal type func above.
	v.RegisterValidation("dailyfee", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return f >= 0 && f <= model.MaxDailyFee.InexactFloat64()
	})

	return v
}

// validateRequest checks req and, on failure, writes a 400 naming the first
// bad field. It reports whether req was valid.
func validateRequest(w http.ResponseWriter, req any) bool {
	err := validate.Struct(req)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		jsonError(w, http.StatusBadRequest, "invalid request")
		return false
	}

	fe := verrs[0]
	jsonFieldError(w, fe.Field(), describe(fe))
	return false
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "enter a valid email address"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "cover":
		return fmt.Sprintf("must be one of: %s %s", model.CoverHard, model.CoverSoft)
	case "role":
		return fmt.Sprintf("must be one of: %s %s", model.RoleAdmin, model.RoleUser)
	case "booktext":
		return fmt.Sprintf("must be at most %d characters", model.MaxTextLength)
	case "dailyfee":
		return fmt.Sprintf("must be between 0 and %s", model.MaxDailyFee.StringFixed(2))
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}
