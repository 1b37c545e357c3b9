package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"cashflow/internal/core"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their YAML names so errors point at the file.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// LoadAppConfig reads and validates the YAML domain configuration at path.
func LoadAppConfig(path string) (core.AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.AppConfig{}, fmt.Errorf("read app config %s: %w", path, err)
	}
	cfg, err := ParseAppConfig(data)
	if err != nil {
		return core.AppConfig{}, fmt.Errorf("load app config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseAppConfig decodes YAML on top of the default cycle settings and
// validates the result. Unknown keys are rejected.
func ParseAppConfig(data []byte) (core.AppConfig, error) {
	cfg := core.AppConfig{Cycle: core.DefaultCycleSettings()}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return core.AppConfig{}, errors.New("app config is empty")
		}
		return core.AppConfig{}, fmt.Errorf("decode app config: %w", err)
	}

	if strings.TrimSpace(cfg.Cycle.TiffinReminderTime) == "" {
		cfg.Cycle.TiffinReminderTime = core.DefaultCycleSettings().TiffinReminderTime
	}
	if err := ValidateAppConfig(cfg); err != nil {
		return core.AppConfig{}, err
	}
	return cfg, nil
}

// ValidateAppConfig runs the struct tag rules and the checks tags cannot
// express, returning every problem found.
func ValidateAppConfig(cfg core.AppConfig) error {
	var problems []error

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate app config: %w", err)
		}
		for _, fe := range verrs {
			problems = append(problems, fieldError(fe))
		}
	}

	if _, err := cfg.Cycle.Location(); err != nil {
		problems = append(problems, fmt.Errorf("cycle.timezone: %w", err))
	}
	if _, _, err := core.ParseClock(cfg.Cycle.CheckinTime); err != nil {
		problems = append(problems, fmt.Errorf("cycle.checkin_time: %w", err))
	}
	if _, _, err := core.ParseClock(cfg.Cycle.TiffinReminderTime); err != nil {
		problems = append(problems, fmt.Errorf("cycle.tiffin_reminder_time: %w", err))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid app config: %w", errors.Join(problems...))
	}
	return nil
}

func fieldError(fe validator.FieldError) error {
	field := strings.TrimPrefix(fe.Namespace(), "AppConfig.")
	if fe.Param() != "" {
		return fmt.Errorf("%s: must satisfy %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Errorf("%s: must satisfy %s", field, fe.Tag())
}
