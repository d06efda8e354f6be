// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	"grimm.is/tinmark/internal/classify"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validate validates the entire configuration. Call ApplyDefaults first.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors

	if c.WANInterface == "" {
		errs = append(errs, ValidationError{Field: "wan_interface", Message: "is required"})
	}
	if c.UploadKbit <= 0 {
		errs = append(errs, ValidationError{Field: "upload_kbit", Message: "must be positive"})
	}
	if c.DownloadKbit <= 0 {
		errs = append(errs, ValidationError{Field: "download_kbit", Message: "must be positive"})
	}
	if c.Demotion.UploadSeconds <= 0 {
		errs = append(errs, ValidationError{Field: "demotion.upload_seconds", Message: "must be positive"})
	}
	if c.Demotion.DownloadSeconds <= 0 {
		errs = append(errs, ValidationError{Field: "demotion.download_seconds", Message: "must be positive"})
	}

	if c.Queue.Egress < 0 || c.Queue.Egress > 65535 {
		errs = append(errs, ValidationError{Field: "queue.egress", Message: "must be 0-65535"})
	}
	if c.Queue.Ingress < 0 || c.Queue.Ingress > 65535 {
		errs = append(errs, ValidationError{Field: "queue.ingress", Message: "must be 0-65535"})
	}
	if c.Queue.Egress == c.Queue.Ingress {
		errs = append(errs, ValidationError{Field: "queue", Message: "egress and ingress queue numbers must differ"})
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, ValidationError{Field: "log_level", Message: fmt.Sprintf("unknown level %q", c.LogLevel)})
	}

	for i, n := range c.LocalNetworks {
		if _, err := netip.ParsePrefix(n); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("local_networks[%d]", i),
				Message: fmt.Sprintf("invalid CIDR %q", n),
			})
		}
	}

	if c.API.Enabled && c.API.Listen != "" {
		if _, _, err := net.SplitHostPort(c.API.Listen); err != nil {
			errs = append(errs, ValidationError{Field: "api.listen", Message: fmt.Sprintf("invalid listen address: %v", err)})
		}
	}

	// Rule syntax is checked by compiling the full set. One bad rule
	// fails the whole config rather than silently skipping the rule.
	if _, err := classify.CompileRules(c.Rules); err != nil {
		errs = append(errs, ValidationError{Field: "rule", Message: err.Error()})
	}

	if c.Syslog != nil && c.Syslog.Enabled && c.Syslog.Host == "" {
		errs = append(errs, ValidationError{Field: "syslog.host", Message: "is required when syslog is enabled"})
	}

	return errs
}
