package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

var validate = validator.New()

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (r *ChatRequest) Validate() map[string]string {
	return structErrors(r)
}

func (r *ContactRequest) Validate() map[string]string {
	return structErrors(r)
}

func structErrors(s any) map[string]string {
	if err := validate.Struct(s); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}
