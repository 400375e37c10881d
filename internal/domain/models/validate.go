package models

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var configValidator = validator.New()

// ValidateConfig checks the algorithm selector and parameter ranges of cfg.
func ValidateConfig(cfg ForecastConfig) error {
	if err := configValidator.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	return nil
}
