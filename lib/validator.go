package lib

import (
	"github.com/go-playground/validator/v10"
	"github.com/lawoffice/billinghub/lib/interval"
)

type CustomValidator struct {
	Validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.Validator.Struct(i)
}

// NewValidator registers the "timestamp" tag for naive wire timestamps.
func NewValidator() *CustomValidator {
	v := validator.New()
	_ = v.RegisterValidation("timestamp", func(fl validator.FieldLevel) bool {
		_, err := interval.Parse(fl.Field().String())
		return err == nil
	})
	return &CustomValidator{Validator: v}
}
