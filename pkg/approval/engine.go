package approval

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage"
	"github.com/open-policy-agent/opa/storage/inmem"
	"github.com/rs/zerolog"
)

// Engine compiles and evaluates approved-exe launch policies. The executor's
// elevated companion calls Evaluate once per LaunchApprovedExe request
// before it ever spawns the child process.
type Engine struct {
	mu              sync.RWMutex
	policies        map[string]*compiledPolicy
	store           storage.Store
	logger          zerolog.Logger
	builtinPolicies []Policy
}

type compiledPolicy struct {
	policy   *Policy
	module   *ast.Module
	compiled time.Time
}

// NewEngine builds an Engine with the built-in policies already compiled.
func NewEngine(logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		policies:        make(map[string]*compiledPolicy),
		store:           inmem.New(),
		logger:          logger.With().Str("component", "approval-engine").Logger(),
		builtinPolicies: GetBuiltinPolicies(),
	}

	if err := e.loadBuiltinPolicies(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to load built-in policies: %w", err)
	}

	return e, nil
}

// Evaluate runs every enabled policy against req and aggregates the result.
// Allowed is false the moment any error- or critical-severity violation
// fires; warning-severity violations are reported but never deny the
// launch.
func (e *Engine) Evaluate(ctx context.Context, req LaunchRequest) (*Decision, error) {
	start := time.Now()
	e.mu.RLock()
	defer e.mu.RUnlock()

	if req.Context == nil {
		req.Context = &EvalContext{Timestamp: start}
	}

	var violations []Violation
	var warnings []string
	evaluated := make([]string, 0, len(e.policies))

	for _, cp := range e.policies {
		if !cp.policy.Enabled {
			continue
		}
		evaluated = append(evaluated, cp.policy.Name)

		found, err := e.evaluatePolicy(ctx, cp, req)
		if err != nil {
			e.logger.Error().Err(err).Str("policy", cp.policy.Name).Str("key", req.Key).Msg("policy evaluation failed")
			warnings = append(warnings, fmt.Sprintf("policy %s evaluation failed: %v", cp.policy.Name, err))
			continue
		}
		violations = append(violations, found...)
	}

	allowed := true
	for _, v := range violations {
		if v.Severity == SeverityError || v.Severity == SeverityCritical {
			allowed = false
			break
		}
	}

	return &Decision{
		Allowed:           allowed,
		Violations:        violations,
		Warnings:          warnings,
		EvaluatedAt:       time.Now(),
		EvaluatedPolicies: evaluated,
		Duration:          time.Since(start),
	}, nil
}

// LoadPolicies loads and compiles manifest-authored policy files/directories
// on top of the built-ins.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	loader := NewLoader(e.logger)
	policies, err := loader.LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	for i := range policies {
		if err := e.compileAndStorePolicy(&policies[i]); err != nil {
			return fmt.Errorf("failed to compile policy %s: %w", policies[i].Name, err)
		}
	}

	e.logger.Info().Int("count", len(policies)).Msg("policies loaded")
	return nil
}

func (e *Engine) evaluatePolicy(ctx context.Context, cp *compiledPolicy, req LaunchRequest) ([]Violation, error) {
	packageName := extractPackageName(cp.policy.Rego)
	query := fmt.Sprintf("data.%s.deny", packageName)

	r := rego.New(
		rego.Module(cp.policy.Name, cp.policy.Rego),
		rego.Query(query),
		rego.Input(req),
	)

	results, err := r.Eval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy evaluation error: %w", err)
	}

	var violations []Violation
	for _, result := range results {
		if len(result.Expressions) == 0 {
			continue
		}
		denySet, ok := result.Expressions[0].Value.([]interface{})
		if !ok {
			continue
		}
		for _, d := range denySet {
			violations = append(violations, e.toViolation(cp.policy, d, req))
		}
	}
	return violations, nil
}

func extractPackageName(source string) string {
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "package ") {
			parts := strings.Fields(trimmed)
			if len(parts) >= 2 {
				return parts[1]
			}
		}
	}
	return "chainburn.policies"
}

func (e *Engine) toViolation(policy *Policy, result interface{}, req LaunchRequest) Violation {
	v := Violation{Policy: policy.Name, Key: req.Key, Severity: policy.Severity, DetectedAt: time.Now()}

	switch r := result.(type) {
	case string:
		v.Message = r
	case map[string]interface{}:
		if msg, ok := r["message"].(string); ok {
			v.Message = msg
		}
		if sev, ok := r["severity"].(string); ok {
			v.Severity = Severity(sev)
		}
		if key, ok := r["key"].(string); ok {
			v.Key = key
		}
	default:
		v.Message = fmt.Sprintf("%v", result)
	}
	return v
}

func (e *Engine) compileAndStorePolicy(policy *Policy) error {
	module, err := ast.ParseModule(policy.Name, policy.Rego)
	if err != nil {
		return fmt.Errorf("failed to parse policy: %w", err)
	}

	e.policies[policy.Name] = &compiledPolicy{policy: policy, module: module, compiled: time.Now()}
	e.logger.Debug().Str("policy", policy.Name).Msg("policy compiled")
	return nil
}

func (e *Engine) loadBuiltinPolicies(ctx context.Context) error {
	for i := range e.builtinPolicies {
		if err := e.compileAndStorePolicy(&e.builtinPolicies[i]); err != nil {
			return fmt.Errorf("failed to compile built-in policy %s: %w", e.builtinPolicies[i].Name, err)
		}
	}
	e.logger.Info().Int("count", len(e.builtinPolicies)).Msg("built-in policies loaded")
	return nil
}

// GetPolicy returns a loaded policy by name.
func (e *Engine) GetPolicy(name string) (*Policy, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cp, ok := e.policies[name]
	if !ok {
		return nil, fmt.Errorf("policy not found: %s", name)
	}
	return cp.policy, nil
}

// ListPolicies returns every loaded policy.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Policy, 0, len(e.policies))
	for _, cp := range e.policies {
		out = append(out, *cp.policy)
	}
	return out
}

// ReloadPolicies drops every loaded policy and recompiles the built-ins.
func (e *Engine) ReloadPolicies(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.policies = make(map[string]*compiledPolicy)
	return e.loadBuiltinPolicies(ctx)
}

// EnablePolicy turns a policy on.
func (e *Engine) EnablePolicy(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp, ok := e.policies[name]
	if !ok {
		return fmt.Errorf("policy not found: %s", name)
	}
	cp.policy.Enabled = true
	return nil
}

// DisablePolicy turns a policy off.
func (e *Engine) DisablePolicy(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp, ok := e.policies[name]
	if !ok {
		return fmt.Errorf("policy not found: %s", name)
	}
	cp.policy.Enabled = false
	return nil
}
