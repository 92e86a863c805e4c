// Package qualitygate implements the optional post-registration
// evaluation hook (spec.md §4.7): interface-compliance, performance,
// and security checks that score a registered tool without affecting
// routing.
package qualitygate

import (
	"context"
	"time"

	"github.com/brennhill/browsergate/internal/registry"
)

// GateResult is the {valid, score, errors} shape every individual gate
// and the composite Run return.
type GateResult struct {
	Valid  bool     `json:"valid"`
	Score  float64  `json:"score"`
	Errors []string `json:"errors"`
}

func fail(reason string) GateResult {
	return GateResult{Valid: false, Score: 0, Errors: []string{reason}}
}

// dangerousParams are the parameter values a correct Validate should
// never accept, used by the security gate.
var dangerousParams = map[string]any{
	"__proto__": map[string]any{"polluted": true},
	"path":      "../../../../etc/passwd",
	"url":       "javascript:alert(document.cookie)",
	"query":     "'; DROP TABLE users; --",
	"script":    "<script>alert(1)</script>",
}

// InterfaceCompliance checks that t satisfies every required method
// surface with non-degenerate results: a name, an endpoint starting
// with /, and a schema with a non-empty type. Since Go's type system
// already enforces the registry.Tool method set at compile time, this
// gate's job is catching degenerate-but-compiling implementations
// (empty name, empty endpoint) rather than missing methods.
func InterfaceCompliance(t registry.Tool) GateResult {
	var errs []string
	if t.Name() == "" {
		errs = append(errs, "Name() returned empty string")
	}
	if t.Endpoint() == "" || t.Endpoint()[0] != '/' {
		errs = append(errs, "Endpoint() is empty or does not start with /")
	}
	if t.Schema().Type == "" {
		errs = append(errs, "Schema().Type is empty")
	}
	if t.Description() == "" {
		errs = append(errs, "Description() returned empty string")
	}
	if len(errs) > 0 {
		return GateResult{Valid: false, Score: 0, Errors: errs}
	}
	return GateResult{Valid: true, Score: 100}
}

// Performance invokes a representative execution of t and scores it by
// elapsed time per spec.md §4.7's literal thresholds: <1s => 95,
// <5s => 75, >=5s => fail.
func Performance(ctx context.Context, t registry.Tool, params map[string]any) GateResult {
	start := time.Now()
	res, err := t.Execute(ctx, params)
	elapsed := time.Since(start)

	if err != nil {
		return fail("representative execution returned an error: " + err.Error())
	}
	if !res.Success {
		return fail("representative execution reported failure: " + res.Error)
	}

	switch {
	case elapsed < time.Second:
		return GateResult{Valid: true, Score: 95}
	case elapsed < 5*time.Second:
		return GateResult{Valid: true, Score: 75}
	default:
		return fail("representative execution took " + elapsed.String() + " (>= 5s)")
	}
}

// Security probes t.Validate with a battery of known-dangerous
// parameter values. A tool that reports any of them valid is
// penalized; a tool with no meaningful validation (Validate always
// returns Valid:true regardless of input) is penalized the same way,
// since it can't distinguish dangerous input from safe input either.
func Security(t registry.Tool) GateResult {
	var accepted []string
	for key, value := range dangerousParams {
		vr := t.Validate(map[string]any{key: value})
		if vr.Valid {
			accepted = append(accepted, key)
		}
	}
	if len(accepted) > 0 {
		errs := make([]string, 0, len(accepted))
		for _, k := range accepted {
			errs = append(errs, "validate accepted dangerous parameter: "+k)
		}
		score := 100 - float64(len(accepted))*(100/float64(len(dangerousParams)))
		if score < 0 {
			score = 0
		}
		return GateResult{Valid: false, Score: score, Errors: errs}
	}
	return GateResult{Valid: true, Score: 100}
}

// Run performs the composite evaluation: averages the three gates'
// scores and ANDs their validities. The hook has no effect on routing
// (spec.md §4.7) — callers run this out-of-band, typically right after
// Registry.Register.
func Run(ctx context.Context, t registry.Tool, representativeParams map[string]any) GateResult {
	compliance := InterfaceCompliance(t)
	perf := Performance(ctx, t, representativeParams)
	sec := Security(t)

	var errs []string
	errs = append(errs, compliance.Errors...)
	errs = append(errs, perf.Errors...)
	errs = append(errs, sec.Errors...)

	return GateResult{
		Valid:  compliance.Valid && perf.Valid && sec.Valid,
		Score:  (compliance.Score + perf.Score + sec.Score) / 3,
		Errors: errs,
	}
}
