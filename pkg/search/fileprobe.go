package search

import (
	"os"

	"github.com/chainburn/chainburn/pkg/errs"
	"github.com/chainburn/chainburn/pkg/variables"
)

// OSFileProbe resolves FileProbe directly against the local filesystem.
type OSFileProbe struct {
	// VersionOf extracts a version string from a file's metadata. On
	// Windows this would read the PE/MSI version resource; elsewhere the
	// extraction is pluggable.
	VersionOf func(path string) (string, error)
}

func (p OSFileProbe) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Version reports KindNotFound for a missing file, so a version search
// against it leaves its variable unchanged rather than writing a zero
// version.
func (p OSFileProbe) Version(path string) (variables.Version, error) {
	ok, err := p.Exists(path)
	if err != nil {
		return variables.Version{}, err
	}
	if !ok {
		return variables.Version{}, errs.NewNotFound("file not found: " + path).WithResource(path)
	}
	if p.VersionOf == nil {
		return variables.Version{}, nil
	}
	text, err := p.VersionOf(path)
	if err != nil {
		return variables.Version{}, err
	}
	return variables.ParseVersion(text), nil
}
