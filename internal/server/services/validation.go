package services

import (
	"errors"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/go-playground/validator/v10"
)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// max counts runes; bcrypt counts bytes
	if err := v.RegisterValidation("bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	}); err != nil {
		panic(err)
	}
	return v
}

type credentialsInput struct {
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,min=6,bcryptlen"`
}

type emailInput struct {
	Email string `validate:"required,email,max=254"`
}

type passwordInput struct {
	Password string `validate:"required,min=6,bcryptlen"`
}

type tokenInput struct {
	Token string `validate:"required,hexadecimal,max=128"`
}

// checkInput validates v and turns failures into a BadRequest naming the
// offending fields.
func checkInput(op string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return common.Wrap(op, common.ErrorInternal, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return common.E(op, common.ErrorBadRequest, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return field + " must be at least " + fe.Param() + " characters"
	case "max":
		return field + " must be at most " + fe.Param() + " characters"
	case "bcryptlen":
		return field + " must be at most " + strconv.Itoa(maxPasswordBytes) + " bytes"
	default:
		return field + " is invalid"
	}
}
