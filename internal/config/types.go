// Package config provides shared configuration defaults and validation for
// schemamap. It is decoupled from CLI concerns.
package config

import (
	"fmt"
	"strings"
)

// ValidOutputModes lists the accepted values of the output key.
var ValidOutputModes = []string{"auto", "text", "markdown", "json"}

// ValidOnErrorPolicies lists the accepted values of the on_error key.
var ValidOnErrorPolicies = []string{"abort", "skip"}

// ValidateOutput checks an output mode.
func ValidateOutput(mode string) error {
	return oneOf("output", mode, ValidOutputModes)
}

// ValidateOnError checks a failure policy.
func ValidateOnError(policy string) error {
	return oneOf("on_error", policy, ValidOnErrorPolicies)
}

func oneOf(key, value string, valid []string) error {
	for _, v := range valid {
		if value == v {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q (valid: %s)", key, value, strings.Join(valid, ", "))
}
