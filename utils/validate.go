package utils

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate returns the shared validator instance used for struct-tag
// validation across the module.
func Validate() *validator.Validate {
	return validate
}
