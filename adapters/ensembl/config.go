package ensembl

import (
	"fmt"
	"strings"
	"time"
)

// DefaultBaseURL is the public Ensembl REST endpoint
const DefaultBaseURL = "https://rest.ensembl.org"

// ClientConfig holds configuration for the Ensembl REST client
type ClientConfig struct {
	BaseURL string `json:"base_url"`
	Species string `json:"species"`

	Timeout time.Duration `json:"timeout"`

	// RequestDelay is the fixed pause between consecutive annotation requests
	RequestDelay time.Duration `json:"request_delay"`

	UserAgent string `json:"user_agent"`
}

// DefaultClientConfig returns the settings used against rest.ensembl.org
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:      DefaultBaseURL,
		Species:      "human",
		Timeout:      30 * time.Second,
		RequestDelay: 100 * time.Millisecond,
		UserAgent:    "varexplorer/1.0",
	}
}

// Validate checks if the configuration is valid
func (c ClientConfig) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return &ValidationError{Field: "BaseURL", Message: "is required"}
	}
	if strings.TrimSpace(c.Species) == "" {
		return &ValidationError{Field: "Species", Message: "is required"}
	}
	if c.Timeout <= 0 {
		return &ValidationError{Field: "Timeout", Message: "must be positive"}
	}
	if c.RequestDelay < 0 {
		return &ValidationError{Field: "RequestDelay", Message: "cannot be negative"}
	}
	return nil
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}
