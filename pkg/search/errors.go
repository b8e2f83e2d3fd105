package search

import "github.com/chainburn/chainburn/pkg/errs"

// extensionNotFound is an ExtensionFailed, not a NotFound: a probe miss
// leaves the variable unchanged and is silent, but naming an unregistered
// extension is a declaration error the caller must see.
func extensionNotFound(name string) error {
	return errs.New(errs.KindExtensionFailed, "extension search not registered: "+name, nil).WithResource(name)
}

func unknownKind(k Kind) error {
	return errs.NewInvalidArg("unknown search kind: " + k.String())
}
