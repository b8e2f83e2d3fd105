package search

// Kind discriminates the closed set of search probes the engine knows how
// to execute natively; Extension hands off to a sandboxed script or WASM
// module for anything else.
type Kind int

const (
	KindDirectoryExists Kind = iota
	KindFileExists
	KindFileVersion
	KindFilePath
	KindRegistryExists
	KindRegistryValue
	KindMsiComponent
	KindMsiProduct
	KindExtension
)

func (k Kind) String() string {
	switch k {
	case KindDirectoryExists:
		return "directory_exists"
	case KindFileExists:
		return "file_exists"
	case KindFileVersion:
		return "file_version"
	case KindFilePath:
		return "file_path"
	case KindRegistryExists:
		return "registry_exists"
	case KindRegistryValue:
		return "registry_value"
	case KindMsiComponent:
		return "msi_component"
	case KindMsiProduct:
		return "msi_product"
	case KindExtension:
		return "extension"
	default:
		return "unknown"
	}
}

// RegistryRoot names one of the well-known registry hives a RegistryExists /
// RegistryValue search probes. chainburn runs cross-platform, so on
// non-Windows hosts every registry search resolves through a shimmed
// key-value store rather than the real Windows registry (see regshim.go).
type RegistryRoot int

const (
	RootClassesRoot RegistryRoot = iota
	RootCurrentUser
	RootLocalMachine
	RootUsers
)

// ValueKind narrows which shape a RegistryValue or file-version search
// expects back, mirroring the REG_* type family.
type ValueKind int

const (
	ValueAuto ValueKind = iota
	ValueString
	ValueDWord
	ValueQWord
	ValueMultiString
	ValueVersion
)

// Decl is one declared search: a probe plus where to store its result.
type Decl struct {
	ID          string
	Kind        Kind
	Condition   string // empty means "always run"
	Variable    string // destination variable name
	Win64       bool   // prefer the 64-bit registry/filesystem view when both exist

	Path        string // DirectoryExists/FileExists/FileVersion/FilePath
	MinVersion  string // FileVersion: a found version < MinVersion counts as not found (variable unchanged)

	Root  RegistryRoot // RegistryExists/RegistryValue
	Key   string
	Value string
	As    ValueKind

	ComponentID string // MsiComponent
	ProductCode string // MsiProduct
	Attribute   string // MsiProduct: "version", "language", "assignment", ...

	Extension string // ExtensionSearch: registered extension name
	Arg       string // opaque argument text passed to the extension
}

// Result is the outcome of running one Decl.
type Result struct {
	ID      string
	Skipped bool // condition evaluated false
	Err     error
}
