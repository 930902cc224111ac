package model

import (
	"net/url"
	"regexp"
	"strings"
	"sync"

	"shipyard/internal/common"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	sshGitPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+:[a-zA-Z0-9._/~-]+$`)
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("git_url", func(fl validator.FieldLevel) bool {
			raw := strings.TrimSpace(fl.Field().String())
			if raw == "" {
				return false
			}
			if parsed, err := url.Parse(raw); err == nil {
				switch strings.ToLower(parsed.Scheme) {
				case "http", "https", "ssh", "git":
					return parsed.Host != ""
				}
			}
			return sshGitPattern.MatchString(raw)
		})

		validateInst = v
	})
	return validateInst
}

// ValidateApplication checks an onboarding request after defaults are applied.
func ValidateApplication(app *Application) error {
	err := validatorInstance().Struct(app)
	if err == nil {
		return nil
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		first := verrs[0]
		return common.NewErrNof(common.REQUEST_INVALID, "field %s failed %q", first.Namespace(), first.Tag())
	}
	return common.NewErrNof(common.REQUEST_INVALID, "%v", err)
}
