package visibility

import "context"

// Evaluator decides visibility. Native applies IsVisible directly; a policy-engine
// implementation lives in internal/policy/engine.
type Evaluator interface {
	Visible(ctx context.Context, p Policy, v Viewer) (bool, error)
}

// Native evaluates with IsVisible.
type Native struct{}

// Visible implements Evaluator.
func (Native) Visible(_ context.Context, p Policy, v Viewer) (bool, error) {
	return IsVisible(p, v), nil
}

// Filter returns the items of list visible to v under ev. policyOf extracts each item's policy.
func Filter[T any](ctx context.Context, ev Evaluator, v Viewer, list []T, policyOf func(T) Policy) ([]T, error) {
	out := make([]T, 0, len(list))
	for _, item := range list {
		ok, err := ev.Visible(ctx, policyOf(item), v)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, item)
		}
	}
	return out, nil
}
