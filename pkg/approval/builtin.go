package approval

import "time"

// GetBuiltinPolicies returns the policies every Engine loads before any
// manifest-authored policy bundle.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		mustBeDeclaredPolicy(),
		pathMustMatchDeclaredPolicy(),
		elevationMustMatchPolicy(),
		noShellMetacharactersPolicy(),
	}
}

// mustBeDeclaredPolicy denies any key the manifest never declared as an
// approved executable.
func mustBeDeclaredPolicy() Policy {
	return Policy{
		Name:        "approved-exe-declared",
		Description: "LaunchApprovedExe key must match a manifest-declared approved executable",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"launch", "allow-list"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package chainburn.policies.declared

import rego.v1

deny contains violation if {
	not declared_key
	violation := {
		"message": sprintf("approved exe key '%s' is not declared in the bundle manifest", [input.key]),
		"severity": "error",
		"key": input.key,
	}
}

declared_key if {
	some d in input.declared
	d.key == input.key
}`,
	}
}

// pathMustMatchDeclaredPolicy denies a launch whose resolved path doesn't
// match the manifest's cached target path for that key.
func pathMustMatchDeclaredPolicy() Policy {
	return Policy{
		Name:        "approved-exe-path-match",
		Description: "Resolved launch path must equal the manifest's declared target path for the key",
		Severity:    SeverityCritical,
		Enabled:     true,
		Tags:        []string{"launch", "integrity"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package chainburn.policies.pathmatch

import rego.v1

deny contains violation if {
	some d in input.declared
	d.key == input.key
	d.target_path != input.resolved_path
	violation := {
		"message": sprintf("resolved path '%s' does not match declared target for key '%s'", [input.resolved_path, input.key]),
		"severity": "critical",
		"key": input.key,
	}
}`,
	}
}

// elevationMustMatchPolicy denies launching a per-user-declared exe with
// elevated context, and vice versa for per-machine.
func elevationMustMatchPolicy() Policy {
	return Policy{
		Name:        "approved-exe-elevation-match",
		Description: "Elevated launch context must match the manifest's per_machine declaration for the key",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"launch", "privilege"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package chainburn.policies.elevation

import rego.v1

deny contains violation if {
	some d in input.declared
	d.key == input.key
	d.per_machine
	not input.elevated
	violation := {
		"message": sprintf("key '%s' is declared per-machine and must be launched through the elevated companion", [input.key]),
		"severity": "error",
		"key": input.key,
	}
}

deny contains violation if {
	some d in input.declared
	d.key == input.key
	not d.per_machine
	input.elevated
	violation := {
		"message": sprintf("key '%s' is declared per-user and must not be launched elevated", [input.key]),
		"severity": "error",
		"key": input.key,
	}
}`,
	}
}

// noShellMetacharactersPolicy flags arguments carrying shell metacharacters,
// since approved-exe arguments are passed through to CreateProcess verbatim.
// It runs at warning severity: a match is reported as a violation but does
// not by itself deny the launch.
func noShellMetacharactersPolicy() Policy {
	return Policy{
		Name:        "approved-exe-no-shell-metacharacters",
		Description: "Launch arguments must not carry shell metacharacters",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"launch", "safety"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package chainburn.policies.argsafety

import rego.v1

forbidden := ["|", "&", ";", "$(", "` + "`" + `", ">", "<"]

deny contains violation if {
	some arg in input.arguments
	some ch in forbidden
	contains(arg, ch)
	violation := {
		"message": sprintf("argument '%s' contains shell metacharacter '%s'", [arg, ch]),
		"severity": "warning",
		"key": input.key,
	}
}`,
	}
}
