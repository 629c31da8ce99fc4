package utils

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	userNamePattern = regexp.MustCompile(`^[a-z0-9._]{3,30}$`)
	fullNamePattern = regexp.MustCompile(`^[A-Za-z]+(?: [A-Za-z]+)*$`)
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	birthPattern    = regexp.MustCompile(`^([0-2][0-9]|3[0-1])-(0[1-9]|1[0-2])-\d{4}$`)
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator with the application rules registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		if err := RegisterRules(validate); err != nil {
			panic(err)
		}
	})
	return validate
}

// RegisterRules adds the custom tags to v. It is also applied to gin's
// binding engine so request structs can use them.
//
//	username   3-30 chars of a-z, 0-9, '.', '_'
//	fullname   letters, single spaces between words
//	loose_email  something@something.tld
//	birthdate  DD-MM-YYYY shape (calendar validity is checked separately)
func RegisterRules(v *validator.Validate) error {
	rules := map[string]*regexp.Regexp{
		"username":    userNamePattern,
		"fullname":    fullNamePattern,
		"loose_email": emailPattern,
		"birthdate":   birthPattern,
	}
	for tag, re := range rules {
		re := re
		err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return re.MatchString(fl.Field().String())
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ValidVar reports whether value satisfies tag.
func ValidVar(value any, tag string) bool {
	return Validator().Var(value, tag) == nil
}
