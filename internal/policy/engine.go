// Package policy evaluates the discovery-inclusion policy: which resource
// types and accounts are excluded from a crawl's working set. Adapted from
// the teacher's OPA-based policy engine, narrowed from a deny/flag/approve
// recommendation engine to an include/exclude gate evaluated once per
// resource after relationship inference, before the DeltaEngine.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/telemetry"
)

// Decision is the outcome of evaluating a resource against every loaded
// policy.
type Decision struct {
	Include  bool
	Reason   string
	Policies []string
}

// Input is what a Rego policy module sees.
type Input struct {
	ResourceType string `json:"resourceType"`
	AccountID    string `json:"accountId"`
	Region       string `json:"region"`
}

// Engine evaluates loaded Rego policy modules against discovery candidates.
//
// OBSERVABILITY-ADJACENT, NOT MUTATING: Engine only decides whether a
// resource enters the working set; it never mutates cloud state.
type Engine struct {
	logger  *telemetry.Logger
	tracer  trace.Tracer
	queries map[string]rego.PreparedEvalQuery
}

// NewEngine builds an empty policy engine; load modules with LoadPolicy.
func NewEngine(logger *telemetry.Logger) *Engine {
	return &Engine{
		logger:  logger,
		tracer:  otel.Tracer("policy-engine"),
		queries: make(map[string]rego.PreparedEvalQuery),
	}
}

// LoadPolicy compiles and registers a Rego module under data.discovery.
func (e *Engine) LoadPolicy(ctx context.Context, name, regoCode string) error {
	ctx, span := e.tracer.Start(ctx, "policy.load",
		trace.WithAttributes(attribute.String("policy.name", name)))
	defer span.End()

	query := rego.New(
		rego.Query("data.discovery"),
		rego.Module(name, regoCode),
	)

	prepared, err := query.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("policy: compile %s: %w", name, err)
	}

	e.queries[name] = prepared
	e.logger.WithContext(ctx).Info().Str("policy_name", name).Msg("policy loaded")
	return nil
}

// Evaluate runs every loaded policy against r and returns the aggregated
// include/exclude decision. A resource excluded by ANY policy is excluded
// overall (deny wins).
func (e *Engine) Evaluate(ctx context.Context, r resource.Resource) (Decision, error) {
	ctx, span := e.tracer.Start(ctx, "policy.evaluate",
		trace.WithAttributes(attribute.String("resource.id", r.ID)))
	defer span.End()

	input := Input{ResourceType: r.Type, AccountID: r.AccountID, Region: r.Region}

	decision := Decision{Include: true, Reason: "no policies matched"}
	for name, query := range e.queries {
		excluded, reason, err := e.evaluateOne(ctx, query, input)
		if err != nil {
			e.logger.WithContext(ctx).Error().Err(err).Str("policy_name", name).Msg("policy evaluation failed")
			continue
		}
		if excluded {
			decision.Include = false
			decision.Reason = reason
			decision.Policies = append(decision.Policies, name)
		}
	}
	return decision, nil
}

func (e *Engine) evaluateOne(ctx context.Context, query rego.PreparedEvalQuery, input Input) (excluded bool, reason string, err error) {
	results, err := query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, "", fmt.Errorf("policy: eval: %w", err)
	}
	if len(results) == 0 {
		return false, "", nil
	}

	for _, res := range results {
		for _, expr := range res.Expressions {
			m, ok := expr.Value.(map[string]interface{})
			if !ok {
				continue
			}
			if excludeVal, ok := m["exclude"].(bool); ok && excludeVal {
				if r, ok := m["reason"].(string); ok {
					reason = r
				}
				excluded = true
			}
		}
	}
	return excluded, reason, nil
}
