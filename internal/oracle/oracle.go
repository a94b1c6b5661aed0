// Package oracle wraps the external inference service behind a small
// call-and-validate surface: prompt and page images in, schema-checked
// JSON out, retried with exponential backoff on any failure.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kriskris-27/Money-Stories-Finserve/internal/statement"
)

// CallRequest is one stage's exchange with the model. Check, when set,
// runs after schema validation on every attempt; its error counts as a
// failed attempt like any other.
type CallRequest struct {
	Stage       string
	Prompt      string
	Images      []statement.PageImage
	Schema      map[string]any
	MaxAttempts int
	Check       func(json.RawMessage) error
}

// Caller executes one schema-validated exchange. Implementations retry
// internally; a returned payload has already passed schema validation and
// the request's Check.
type Caller interface {
	Call(ctx context.Context, req CallRequest) (json.RawMessage, error)
}

// Config identifies the model and credential. It is built once at process
// start and passed in; there is no package-level client.
type Config struct {
	APIKey string
	Model  string
}

// StageError labels a terminal failure with the stage that caused it.
// Raw holds the last reply text that failed validation, when there was
// one; it is unverified and exists for diagnostics only.
type StageError struct {
	Stage string
	Err   error
	Raw   string
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %s", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
