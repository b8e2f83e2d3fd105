package msp

import (
	"sync"

	"github.com/chainburn/chainburn/pkg/engine"
)

// MemCatalog is an in-memory stand-in for the installer's product catalog,
// used both in tests and as the real ProductCatalog on hosts where targeting
// runs against seeded state rather than a live installer database.
type MemCatalog struct {
	mu         sync.RWMutex
	related    map[string][]string
	installed  []string
	localPaths map[string]string
}

// NewMemCatalog returns an empty catalog shim.
func NewMemCatalog() *MemCatalog {
	return &MemCatalog{
		related:    make(map[string][]string),
		localPaths: make(map[string]string),
	}
}

// SeedInstalled records productCode as an installed product.
func (c *MemCatalog) SeedInstalled(productCode string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.installed {
		if p == productCode {
			return
		}
	}
	c.installed = append(c.installed, productCode)
}

// SeedRelated records the products related to an upgrade code.
func (c *MemCatalog) SeedRelated(upgradeCode string, productCodes ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.related[upgradeCode] = append(c.related[upgradeCode], productCodes...)
}

// SeedLocalPackage records a cached local package path for productCode,
// enabling the fast applicability path for it.
func (c *MemCatalog) SeedLocalPackage(productCode, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.localPaths[productCode] = path
}

func (c *MemCatalog) RelatedProducts(upgradeCode string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.related[upgradeCode], nil
}

func (c *MemCatalog) AllInstalledProducts() ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.installed))
	copy(out, c.installed)
	return out, nil
}

func (c *MemCatalog) LocalPackagePath(productCode string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.localPaths[productCode]
	return p, ok
}

// MemSequencer answers both applicability paths (FastSequencer and
// SequenceFallback) from one seeded table: a (patch, product) pair that was
// seeded applies with its seeded sequence number, anything else does not.
type MemSequencer struct {
	mu      sync.RWMutex
	applies map[string]int
}

// NewMemSequencer returns an empty sequencer shim.
func NewMemSequencer() *MemSequencer {
	return &MemSequencer{applies: make(map[string]int)}
}

// SeedApplicable records that patchCode applies to productCode with the
// given sequence order.
func (s *MemSequencer) SeedApplicable(patchCode, productCode string, sequence int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applies[patchCode+"|"+productCode] = sequence
}

func (s *MemSequencer) DeterminePatchSequence(patchCode, productCode string) (ApplicabilityStatus, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seq, ok := s.applies[patchCode+"|"+productCode]
	if !ok {
		return StatusNotApplicable, 0, nil
	}
	return StatusOK, seq, nil
}

// EvaluateApplicability resolves the fast path against the same table; the
// local package path stands in for the product it was seeded under.
func (s *MemSequencer) EvaluateApplicability(patchCode, localPackagePath string) (ApplicabilityStatus, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seq, ok := s.applies[patchCode+"|"+localPackagePath]
	if !ok {
		return StatusNotApplicable, 0, nil
	}
	return StatusOK, seq, nil
}

// MemPatchStates is an in-memory PatchStateReader. Unseeded pairs read as
// Absent, the state a never-applied patch reports.
type MemPatchStates struct {
	mu     sync.RWMutex
	states map[string]engine.CurrentState
}

// NewMemPatchStates returns an empty state shim.
func NewMemPatchStates() *MemPatchStates {
	return &MemPatchStates{states: make(map[string]engine.CurrentState)}
}

// Seed records the live state of one (patch, product) pair.
func (m *MemPatchStates) Seed(patchCode, productCode string, state engine.CurrentState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[patchCode+"|"+productCode] = state
}

func (m *MemPatchStates) TargetState(patchCode, productCode string) (engine.CurrentState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.states[patchCode+"|"+productCode]; ok {
		return s, nil
	}
	return engine.StateAbsent, nil
}
