package utils

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
)

type paymentForm struct {
	Currency string `json:"currency" binding:"omitempty,currency"`
	Category string `json:"category" binding:"omitempty,fee_category"`
	Method   string `json:"method" binding:"required"`
}

func TestValidators(t *testing.T) {
	InitValidators()

	assert.NoError(t, binding.Validator.ValidateStruct(&paymentForm{Currency: "usd", Category: "boarding", Method: "cash"}))

	err := binding.Validator.ValidateStruct(&paymentForm{Currency: "US", Method: "cash"})
	assert.Equal(t, "currency must be a three letter currency code", ValidationMessage(err))

	err = binding.Validator.ValidateStruct(&paymentForm{Category: "meals", Method: "cash"})
	assert.Equal(t, "category must be one of tuition, boarding or other", ValidationMessage(err))

	err = binding.Validator.ValidateStruct(&paymentForm{})
	assert.Equal(t, "method is a required field", ValidationMessage(err))

	assert.Equal(t, "Invalid request", ValidationMessage(assert.AnError))
}
