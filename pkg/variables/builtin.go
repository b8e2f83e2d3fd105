package variables

import (
	"os"
	"runtime"
	"strings"
)

// OSBuiltins is the default BuiltinProvider: it lazily computes the
// OS-derived read-only variables listed in §4.1 (OS version fields,
// special folders, privileged flag, language IDs, temp path) plus the
// engine-managed BUNDLE_* names the executor populates during a run.
//
// Lookup matches case-insensitively, per the open-question decision in
// doc.go: only the builtin table is case-insensitive.
type OSBuiltins struct {
	// Overrides lets the executor inject BUNDLE_* values computed at
	// runtime (working directory, package action, original source, ...)
	// without this package depending on the engine package.
	Overrides map[string]Value
}

var staticBuiltinNames = []string{
	"VersionNT", "VersionNT64", "ServicePackLevel", "NTProductType",
	"NTSuiteBackOffice", "NTSuiteDataCenter", "NTSuiteEnterprise",
	"NTSuiteSmallBusiness", "NTSuiteSmallBusinessRestricted",
	"NTSuitePersonal", "NTSuiteWebServer", "CompatibilityMode",
	"Privileged", "LogonUser", "UserProfile", "AppDataFolder",
	"LocalAppDataFolder", "ProgramFilesFolder", "ProgramFiles64Folder",
	"CommonFilesFolder", "CommonFiles64Folder", "SystemFolder",
	"System64Folder", "WindowsFolder", "WindowsVolume", "TempFolder",
	"ComputerName", "NTSystemArchitecture",
}

// Names returns every builtin variable name this provider can answer.
func (b *OSBuiltins) Names() []string {
	names := append([]string(nil), staticBuiltinNames...)
	for n := range b.Overrides {
		names = append(names, n)
	}
	return names
}

// Lookup resolves name case-insensitively against the static OS-derived
// table, then the runtime Overrides map.
func (b *OSBuiltins) Lookup(name string) (Value, bool) {
	lower := strings.ToLower(name)
	for _, n := range staticBuiltinNames {
		if strings.ToLower(n) == lower {
			return b.compute(n), true
		}
	}
	for n, v := range b.Overrides {
		if strings.ToLower(n) == lower {
			return v, true
		}
	}
	return None, false
}

func (b *OSBuiltins) compute(name string) Value {
	switch name {
	case "Privileged":
		if os.Geteuid() == 0 {
			return Numeric(1)
		}
		return Numeric(0)
	case "TempFolder":
		dir := os.TempDir()
		if !strings.HasSuffix(dir, string(os.PathSeparator)) {
			dir += string(os.PathSeparator)
		}
		return String(dir)
	case "UserProfile":
		home, _ := os.UserHomeDir()
		return String(withTrailingSep(home))
	case "ComputerName":
		host, _ := os.Hostname()
		return String(host)
	case "NTSystemArchitecture":
		return String(runtime.GOARCH)
	case "VersionNT", "VersionNT64":
		return VersionValue(ParseVersion(osReleaseVersion()))
	default:
		// Folders and flags this host namespace does not model concretely
		// default to empty/zero rather than failing detect outright — the
		// manifest-declared condition referencing them will simply see an
		// empty or false value, matching the "unknown reference expands to
		// empty" formatting rule in spirit.
		return String("")
	}
}

func withTrailingSep(p string) string {
	if p == "" || strings.HasSuffix(p, string(os.PathSeparator)) {
		return p
	}
	return p + string(os.PathSeparator)
}

// osReleaseVersion is a best-effort OS version string; on non-Windows hosts
// (the development/test platform for this engine) it reports the Go
// runtime's target OS as a stand-in version tail.
func osReleaseVersion() string {
	return "0.0.0." + runtime.GOOS
}
