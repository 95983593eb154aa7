package model

import (
	"errors"
	"fmt"
)

// ErrConfig marks malformed caller input: bad strategy names, merge groups,
// replace rules, layouts. Everything else is recovered per row.
var ErrConfig = errors.New("invalid configuration")

type ConfigError struct {
	Field string
	Msg   string
}

func NewConfigError(field, msg string) *ConfigError {
	return &ConfigError{Field: field, Msg: msg}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Msg)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }
