package msp

import "github.com/chainburn/chainburn/pkg/engine"

// ApplicabilityStatus is the per-candidate result of testing whether a patch
// applies to a product.
type ApplicabilityStatus int

const (
	StatusNotApplicable ApplicabilityStatus = iota
	StatusOK
)

// ProductCatalog resolves the installed-product universe a chain's MSPs may
// target: related products for an upgrade code, and (when no MSP declares
// explicit targets) every installed product on the machine.
type ProductCatalog interface {
	RelatedProducts(upgradeCode string) ([]string, error)
	AllInstalledProducts() ([]string, error)
	LocalPackagePath(productCode string) (string, bool)
}

// SequenceFallback is the DeterminePatchSequence collaborator invoked when a
// candidate product has no cached local package path (original_source
// mspengine.cpp's slow path against the live product).
type SequenceFallback interface {
	DeterminePatchSequence(patchCode, productCode string) (ApplicabilityStatus, int, error)
}

// PatchStateReader reads the installer's live state for one (patch, target)
// pair.
type PatchStateReader interface {
	TargetState(patchCode, productCode string) (engine.CurrentState, error)
}

// FastSequencer is the fast-path applicability test used when a candidate's
// local package path is known. Every external system boundary here is an
// interface, never a direct syscall from algorithm code.
type FastSequencer interface {
	EvaluateApplicability(patchCode, localPackagePath string) (ApplicabilityStatus, int, error)
}
