package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"pulsedeck/internal/visibility"
)

// Engine names accepted by NewVisibilityEvaluator.
const (
	EngineNative = "native"
	EngineOPA    = "opa"
)

// NewVisibilityEvaluator returns the evaluator configured by name ("" means native).
func NewVisibilityEvaluator(ctx context.Context, name string, log logrus.FieldLogger, onFallback func()) (visibility.Evaluator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EngineNative:
		return visibility.Native{}, nil
	case EngineOPA:
		return NewOPAEvaluator(ctx, log, onFallback)
	default:
		return nil, fmt.Errorf("unknown visibility engine %q", name)
	}
}
