package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// cronParser accepts standard five-field expressions and descriptors such as @daily.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
			_, err := cronParser.Parse(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// ParseCron parses a schedule expression.
func ParseCron(expr string) (cron.Schedule, error) {
	return cronParser.Parse(expr)
}

// Load decodes the configuration held by v over Default and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile reads and validates the configuration file at path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Load(v)
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	var problems []string

	if err := validatorInstance().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		for _, e := range verrs {
			problems = append(problems, fmt.Sprintf("%s %s", fieldPath(e), formatValidationError(e)))
		}
	}

	if c.Profile != "" {
		if p, ok := c.Profiles[c.Profile]; !ok {
			problems = append(problems, fmt.Sprintf("profile %q is not defined", c.Profile))
		} else if p.Channel != ChannelNone && len(p.Strategies) == 0 {
			problems = append(problems, fmt.Sprintf("profile %q uses the %s channel but lists no strategies", c.Profile, p.Channel))
		}
	}
	if !strings.Contains(c.Search.URLTemplate, "{origin}") || !strings.Contains(c.Search.URLTemplate, "{destination}") {
		problems = append(problems, "search.url_template must contain {origin} and {destination}")
	}
	if c.Poller.RefreshAt > c.Poller.MaxAttempts {
		problems = append(problems, "poller.refresh_at must not exceed poller.max_attempts")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w:\n  %s", ErrInvalid, strings.Join(problems, "\n  "))
	}
	return nil
}

// fieldPath turns "Config.Routes[0].Origin" into "Routes[0].Origin".
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_if":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s entries", e.Param())
	case "len":
		return fmt.Sprintf("must be %s characters", e.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", e.Param())
	case "uppercase":
		return "must be upper case"
	case "datetime":
		return fmt.Sprintf("must match the layout %s", e.Param())
	case "cron":
		return "must be a valid cron expression"
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}
