package service

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/loandesk/loanengine/cmd/loanengine/models"
)

// PolicyEvaluator gates new bookings with a configurable CEL
// expression. An empty expression allows everything. The expression
// sees:
//
//	holder        string  requesting holder name
//	kind          string  "loan" or "reservation"
//	duration_days int     inclusive length of the requested window
//
// e.g. BOOKING_POLICY_EXPR='duration_days <= 90' caps loan length.
type PolicyEvaluator struct {
	expr string

	once sync.Once
	prg  cel.Program
	err  error
}

// NewPolicyEvaluator creates an evaluator for the configured expression
func NewPolicyEvaluator(expr string) *PolicyEvaluator {
	return &PolicyEvaluator{expr: expr}
}

// Allow evaluates the policy for a candidate booking. A false result
// or an evaluation error rejects the booking before any state is
// touched.
func (p *PolicyEvaluator) Allow(kind WindowKind, holder string, start, end models.Date) error {
	if p.expr == "" {
		return nil
	}

	p.once.Do(func() {
		p.prg, p.err = p.compile()
	})
	if p.err != nil {
		return &ValidationError{Field: "policy", Msg: p.err.Error()}
	}

	out, _, err := p.prg.Eval(map[string]interface{}{
		"holder":        holder,
		"kind":          string(kind),
		"duration_days": start.DaysUntil(end),
	})
	if err != nil {
		return &ValidationError{Field: "policy", Msg: fmt.Sprintf("evaluation error: %v", err)}
	}

	allowed, ok := out.Value().(bool)
	if !ok {
		return &ValidationError{Field: "policy", Msg: fmt.Sprintf("expression did not return boolean, got %T", out.Value())}
	}
	if !allowed {
		return &ValidationError{Field: "policy", Msg: "booking denied by policy"}
	}

	return nil
}

func (p *PolicyEvaluator) compile() (cel.Program, error) {
	env, err := cel.NewEnv(
		cel.Variable("holder", cel.StringType),
		cel.Variable("kind", cel.StringType),
		cel.Variable("duration_days", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	ast, issues := env.Compile(p.expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation error: %w", issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return prg, nil
}
