package service

import (
	"regexp"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/noah-isme/schoolbot/pkg/errors"
)

var handlePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,32}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
		return handlePattern.MatchString(fl.Field().String())
	})
	return v
}

// validateUsername checks a chat handle: letters, digits, and underscore, at
// most 32 characters, leading @ already stripped by the caller.
func validateUsername(username string) error {
	if err := validate.Var(username, "required,handle"); err != nil {
		return apperrors.Clone(apperrors.ErrValidation,
			"username must be 1-32 characters of letters, digits, or underscore")
	}
	return nil
}

// validateGrade checks the 1..5 grading scale.
func validateGrade(grade int) error {
	if err := validate.Var(grade, "gte=1,lte=5"); err != nil {
		return apperrors.Clone(apperrors.ErrValidation, "grade must be between 1 and 5")
	}
	return nil
}
