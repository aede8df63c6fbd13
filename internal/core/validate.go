package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"organcore/pkg/domain"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(organizationLifespan, domain.Organization{})
	return v
}

// organizationLifespan rejects a dissolution date before the establishment date.
func organizationLifespan(sl validator.StructLevel) {
	o := sl.Current().Interface().(domain.Organization)
	if o.Dissolved.Before(o.Established) {
		sl.ReportError(o.Dissolved, "Dissolved", "Dissolved", "gtefield", "Established")
	}
}

// check validates s and wraps failures in ErrInvalidArgument.
func (e *env) check(s any) error {
	if err := e.validate.Struct(s); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// checkURL validates a source or socials URL.
func (e *env) checkURL(raw string) error {
	if err := e.validate.Var(raw, "required,max=2048"); err != nil {
		return domain.Invalid("url is required")
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return domain.Invalid("%s", strings.Join(msgs, "; "))
}

func formatFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "latitude", "longitude":
		return fmt.Sprintf("%s must be a valid %s", field, fe.Tag())
	case "gtefield":
		return fmt.Sprintf("%s must not precede %s", field, strings.ToLower(fe.Param()))
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
