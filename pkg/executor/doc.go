// Package executor implements C6, the executor and role supervisor:
// SelectRunMode's flag-based dispatch across the five process roles
// (Untrusted/Normal/Elevated/Embedded/RunOnce), Pump's serialized message
// dispatch for Normal mode's Detect/Plan/Elevate/Apply/LaunchApprovedExe/
// Quit messages, Executor's front-to-back execute loop with
// checkpoint-bounded rollback on failure, BuildChildCommandLine's
// sub-process switch assembly for Exe/Bundle packages, and the embedded
// protocol's child->engine message/DialogResult exchange for Burn-aware
// children.
package executor
