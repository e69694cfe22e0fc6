package engine

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/sirupsen/logrus"

	"pulsedeck/internal/logging"
	"pulsedeck/internal/visibility"
)

const visibilityQuery = "data.pulsedeck.visibility.allow"

// defaultRegoPolicy encodes visibility.IsVisible.
const defaultRegoPolicy = `package pulsedeck.visibility

default allow := false

allow if {
	some role in input.policy.allowed_roles
	role in input.viewer.roles
}

allow if {
	input.policy.working_group_id != ""
	input.policy.working_group_id in input.viewer.working_groups
}
`

var _ visibility.Evaluator = (*OPAEvaluator)(nil)

// OPAEvaluator evaluates resource visibility with an in-process OPA Rego query.
// Evaluation errors fall back to the native rule.
type OPAEvaluator struct {
	query      rego.PreparedEvalQuery
	log        logrus.FieldLogger
	onFallback func()
}

// NewOPAEvaluator compiles the visibility policy and prepares the query.
// onFallback, if set, is called each time evaluation falls back to the native rule.
func NewOPAEvaluator(ctx context.Context, log logrus.FieldLogger, onFallback func()) (*OPAEvaluator, error) {
	compiler, err := compileDefault()
	if err != nil {
		return nil, err
	}
	query, err := rego.New(
		rego.Query(visibilityQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare visibility query: %w", err)
	}
	return &OPAEvaluator{query: query, log: logging.OrDiscard(log), onFallback: onFallback}, nil
}

// HealthCheck verifies that the in-process OPA Rego engine can compile and evaluate the default policy.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	compiler, err := compileDefault()
	if err != nil {
		return err
	}
	q := rego.New(
		rego.Query(visibilityQuery),
		rego.Compiler(compiler),
		rego.Input(buildInput(visibility.Policy{}, visibility.Anonymous())),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return fmt.Errorf("eval default policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}

// Visible implements visibility.Evaluator. It never returns an error: failures are logged and
// answered by visibility.IsVisible.
func (e *OPAEvaluator) Visible(ctx context.Context, p visibility.Policy, v visibility.Viewer) (bool, error) {
	allowed, err := e.eval(ctx, buildInput(p, v))
	if err != nil {
		e.log.WithError(err).Warn("policy: visibility evaluation failed, using native rule")
		if e.onFallback != nil {
			e.onFallback()
		}
		return visibility.IsVisible(p, v), nil
	}
	return allowed, nil
}

func (e *OPAEvaluator) eval(ctx context.Context, input map[string]interface{}) (bool, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, fmt.Errorf("policy query returned no result")
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("policy query returned %T, want bool", rs[0].Expressions[0].Value)
	}
	return allowed, nil
}

func compileDefault() (*ast.Compiler, error) {
	compiler, err := ast.CompileModules(map[string]string{"visibility.rego": defaultRegoPolicy})
	if err != nil {
		return nil, fmt.Errorf("compile default policy: %w", err)
	}
	return compiler, nil
}

func buildInput(p visibility.Policy, v visibility.Viewer) map[string]interface{} {
	allowed := make([]interface{}, 0, len(p.AllowedRoles))
	for _, r := range p.AllowedRoles {
		allowed = append(allowed, r.String())
	}
	roles := make([]interface{}, 0, len(v.Roles))
	for _, r := range v.Roles.Sorted() {
		roles = append(roles, r.String())
	}
	groups := make([]interface{}, 0, len(v.WorkingGroups))
	for _, id := range v.GroupIDs() {
		groups = append(groups, id)
	}
	return map[string]interface{}{
		"policy": map[string]interface{}{
			"allowed_roles":    allowed,
			"working_group_id": p.WorkingGroupID,
		},
		"viewer": map[string]interface{}{
			"roles":          roles,
			"working_groups": groups,
		},
	}
}
