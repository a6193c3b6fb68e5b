package auth

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=32"`
	Password string `json:"password" validate:"required,min=1,max=72"`
}

// ValidateLogin rejects blank or oversized fields before any storage or
// hashing work happens.
func ValidateLogin(req LoginRequest) error {
	return validate.Struct(req)
}
