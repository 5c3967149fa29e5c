package entitlement

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if code := fld.Tag.Get("anomaly"); code != "" {
			return code
		}
		if name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]; name != "" && name != "-" {
			return name
		}
		return fld.Name
	})
	return v
}

// fieldErrors returns the names of the fields that failed validation
func fieldErrors(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fe.Field())
	}
	return out
}

func validateInput(input any) error {
	if err := validate.Struct(input); err != nil {
		return shared.NewInvalidArgument("invalid input: %s", strings.Join(fieldErrors(err), ", "))
	}
	return nil
}
