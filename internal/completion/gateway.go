// Package completion isolates every consumer from the concrete
// text-generation backend behind a prompt-in, text-out gateway.
package completion

import (
	"context"
	"errors"
)

// ErrBackend wraps any transport, auth, or quota failure from the
// text-generation backend. Callers must treat it as recoverable at their
// layer: degrade output, never crash.
var ErrBackend = errors.New("completion backend failure")

// Gateway sends a prompt to a text-generation model and returns its reply.
type Gateway interface {
	Complete(ctx context.Context, prompt string, temperature float64) (string, error)
}
