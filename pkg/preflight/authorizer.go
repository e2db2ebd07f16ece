// Package preflight authorizes a statement before it runs by inspecting its
// query plan. The engine's EXPLAIN variant reports every relation the plan
// would touch, including through views and aliases, and each one is checked
// against the visibility rules. The caller's statement itself is never
// executed here.
package preflight

import (
	"context"
	"regexp"

	"go.uber.org/zap"

	"github.com/typhoonworks/lotus-sub001/pkg/apperrors"
	"github.com/typhoonworks/lotus-sub001/pkg/engines"
	"github.com/typhoonworks/lotus-sub001/pkg/visibility"
)

// Authorizer runs the plan-based visibility check.
type Authorizer struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Authorizer {
	return &Authorizer{logger: logger}
}

// explainSuffixRegex strips the diagnostic "query: EXPLAIN ..." tail some
// drivers append to their error strings before the message reaches callers.
var explainSuffixRegex = regexp.MustCompile(`(?s)\s*\(?query:\s*EXPLAIN.*$`)

// Authorize discovers the relations the statement's plan touches and checks
// each against the rules. It must run inside the same transaction the real
// execution would use so the plan sees the same search path. A denial lists
// every blocked relation; a native EXPLAIN failure is classified through the
// engine's error formatter.
func (a *Authorizer) Authorize(ctx context.Context, tx engines.Tx, eng engines.Engine, rules *visibility.Rules, sqlText string, args []any) error {
	rels, err := tx.PlanRelations(ctx, sqlText, args)
	if err != nil {
		message := explainSuffixRegex.ReplaceAllString(engines.ClassifyError(err), "")
		return &apperrors.EngineError{Message: message, Err: err}
	}

	blocked := rules.BlockedRelations(eng, rels)
	if len(blocked) == 0 {
		return nil
	}

	names := make([]string, len(blocked))
	for i, rel := range blocked {
		names[i] = rel.String()
	}
	a.logger.Warn("preflight blocked statement",
		zap.String("engine", eng.ID()),
		zap.Strings("relations", names))
	return &apperrors.VisibilityError{Relations: names}
}
