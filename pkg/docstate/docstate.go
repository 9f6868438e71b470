// Package docstate talks to the external document-state collaborator that
// validates tier prerequisites (investigation and plan documents). The
// collaborator is optional: when it cannot be reached at all the caller is
// expected to fail open, so "unavailable" is reported as a distinct sentinel
// rather than folded into ordinary failures.
package docstate

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Result is the collaborator's verdict for one document check.
type Result struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// Checker validates that a required document type exists and is valid for a
// feature path.
type Checker interface {
	Check(ctx context.Context, docType, featurePath string) (Result, error)
}

// Sentinel errors. Callers distinguish the three: unavailable fails open,
// timeout and invalid-response block only the affected tier.
var (
	// ErrUnavailable means the collaborator is not present at all.
	ErrUnavailable = errors.New("document validation collaborator unavailable")
	// ErrTimeout means the collaborator did not answer within the bound.
	ErrTimeout = errors.New("document validation timed out")
	// ErrInvalidResponse means the collaborator answered with something
	// that could not be interpreted.
	ErrInvalidResponse = errors.New("invalid response from document validation collaborator")
)

// DefaultTimeout bounds a single document check.
const DefaultTimeout = 30 * time.Second

// Config selects and configures a checker implementation.
type Config struct {
	// Command is the docs CLI invoked as
	// `<command> check <featurePath> --type <docType> --json`.
	Command string
	// Endpoint, when set, selects the HTTP checker instead of the
	// command one.
	Endpoint string
	// Timeout bounds one check; zero means DefaultTimeout.
	Timeout time.Duration
}

// NewConfig returns the default checker configuration.
func NewConfig() *Config {
	return &Config{
		Command: "pdocs",
		Timeout: DefaultTimeout,
	}
}

// NewChecker builds the checker selected by the configuration: HTTP when an
// endpoint is configured, otherwise the command checker.
func NewChecker(config *Config) Checker {
	if config == nil {
		config = NewConfig()
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if config.Endpoint != "" {
		return NewHTTPChecker(config.Endpoint, timeout)
	}
	return NewExecChecker(config.Command, timeout)
}
