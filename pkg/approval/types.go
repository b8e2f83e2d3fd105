// Package approval implements the approved-exe launcher's allow-list policy
// engine: OPA/Rego rules that gate the BA's LaunchApprovedExe request (§6)
// against the set of executables a bundle's manifest declared as approved.
package approval

import (
	"time"
)

// Severity is the level of an approval-policy violation.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Policy is a named Rego rule set gating approved-exe launches.
type Policy struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Rego        string                 `json:"rego"`
	Severity    Severity               `json:"severity"`
	Enabled     bool                   `json:"enabled"`
	Tags        []string               `json:"tags,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// ApprovedExeDecl mirrors a manifest-declared approved executable: the key
// the BA references in LaunchApprovedExe, the cached target path it resolves
// to, and whether it requires per-machine (elevated) context to run.
type ApprovedExeDecl struct {
	Key        string `json:"key"`
	TargetPath string `json:"target_path"`
	PerMachine bool   `json:"per_machine"`
	Win64      bool   `json:"win64"`
}

// LaunchRequest is the input to a LaunchApprovedExe evaluation: the BA's
// requested key, the resolved path and arguments it wants to launch with,
// and the set of keys the manifest actually declared.
type LaunchRequest struct {
	Key          string            `json:"key"`
	ResolvedPath string            `json:"resolved_path"`
	Arguments    []string          `json:"arguments,omitempty"`
	Elevated     bool              `json:"elevated"`
	Declared     []ApprovedExeDecl `json:"declared"`
	Context      *EvalContext      `json:"context"`
}

// EvalContext carries ambient information a policy may branch on.
type EvalContext struct {
	Timestamp time.Time `json:"timestamp"`
	Operation string    `json:"operation,omitempty"`
	DryRun    bool      `json:"dry_run"`
}

// Violation is a single denied rule firing against a LaunchRequest.
type Violation struct {
	Policy      string `json:"policy"`
	Key         string `json:"key,omitempty"`
	Message     string `json:"message"`
	Severity    Severity `json:"severity"`
	Remediation string `json:"remediation,omitempty"`
	DetectedAt  time.Time `json:"detected_at"`
}

// Decision is the outcome of evaluating every enabled policy against a
// LaunchRequest: Allowed is false the moment any policy at error/critical
// severity denies.
type Decision struct {
	Allowed           bool        `json:"allowed"`
	Violations        []Violation `json:"violations,omitempty"`
	Warnings          []string    `json:"warnings,omitempty"`
	EvaluatedAt       time.Time   `json:"evaluated_at"`
	EvaluatedPolicies []string    `json:"evaluated_policies"`
	Duration          time.Duration `json:"duration"`
}

// PolicyBundle is a named, versioned collection of policies, loadable as a
// single JSON document.
type PolicyBundle struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Description string    `json:"description"`
	Policies    []Policy  `json:"policies"`
	CreatedAt   time.Time `json:"created_at"`
}
