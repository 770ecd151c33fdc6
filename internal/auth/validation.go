package auth

import (
	"errors"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// LoginForm is the login step submission.
type LoginForm struct {
	Email      string `validate:"emailshape"`
	Password   string `validate:"required"`
	RememberMe bool
}

// RegisterForm is the register step submission.
type RegisterForm struct {
	FullName        string `validate:"max=120"`
	Email           string `validate:"emailshape"`
	Phone           string `validate:"max=32"`
	Password        string `validate:"strongpassword"`
	ConfirmPassword string `validate:"eqfield=Password"`
	AcceptTerms     bool   `validate:"required"`
	Newsletter      bool
}

// EmailForm is the forgot-password and resend submission.
type EmailForm struct {
	Email string `validate:"emailshape"`
}

// NewPasswordForm is the password reset submission.
type NewPasswordForm struct {
	Password        string `validate:"strongpassword"`
	ConfirmPassword string `validate:"eqfield=Password"`
}

// fieldOrder ranks failing fields; only the first is reported.
var fieldOrder = []string{"Email", "ConfirmPassword", "Password", "AcceptTerms", "FullName", "Phone"}

var fieldKeys = map[string]map[string]string{
	"Email":           {"": "auth.error.invalid_email"},
	"ConfirmPassword": {"": "auth.error.password_mismatch"},
	"Password": {
		"strongpassword": "auth.error.weak_password",
		"required":       "auth.error.password_required",
	},
	"AcceptTerms": {"": "auth.error.terms_required"},
}

// Validator checks flow forms before anything is sent to the backend.
type Validator struct {
	v *validator.Validate
}

// NewValidator registers the portal's custom rules.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("emailshape", func(fl validator.FieldLevel) bool {
		return emailShape.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return ScorePassword(fl.Field().String()).Acceptable()
	})
	return &Validator{v: v}
}

// ValidEmail reports whether email has the local@domain.tld shape.
func ValidEmail(email string) bool {
	return emailShape.MatchString(email)
}

// Check validates form and returns the notice for the highest ranked
// failure, or nil.
func (v *Validator) Check(form any) *Notice {
	err := v.v.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NoticeKey("auth.error.invalid_request")
	}
	failed := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := failed[fe.Field()]; !seen {
			failed[fe.Field()] = fe.Tag()
		}
	}
	for _, field := range fieldOrder {
		tag, ok := failed[field]
		if !ok {
			continue
		}
		keys := fieldKeys[field]
		if key, ok := keys[tag]; ok {
			return NoticeKey(key)
		}
		if key, ok := keys[""]; ok {
			return NoticeKey(key)
		}
		return NoticeKey("auth.error.invalid_request")
	}
	return NoticeKey("auth.error.invalid_request")
}
