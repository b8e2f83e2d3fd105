package search

import (
	"sync"

	"github.com/chainburn/chainburn/pkg/errs"
	"github.com/chainburn/chainburn/pkg/variables"
)

// MemMsiCatalog is an in-memory MSI component/product catalog used as the
// MsiProbe until a real installer-database reader is wired in. It mirrors
// the shape msiengine.cpp's MsiGetComponentPath / MsiGetProductInfo queries
// would need, without depending on an actual Windows Installer runtime.
type MemMsiCatalog struct {
	mu         sync.RWMutex
	components map[string]string
	products   map[string]map[string]variables.Value
}

func NewMemMsiCatalog() *MemMsiCatalog {
	return &MemMsiCatalog{
		components: make(map[string]string),
		products:   make(map[string]map[string]variables.Value),
	}
}

func (c *MemMsiCatalog) SeedComponent(componentID, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components[componentID] = path
}

func (c *MemMsiCatalog) SeedProduct(productCode, attribute string, v variables.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.products[productCode] == nil {
		c.products[productCode] = make(map[string]variables.Value)
	}
	c.products[productCode][attribute] = v
}

func (c *MemMsiCatalog) ComponentPath(componentID string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.components[componentID], nil
}

func (c *MemMsiCatalog) ProductAttribute(productCode, attribute string) (variables.Value, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	attrs, ok := c.products[productCode]
	if !ok {
		return variables.None, errs.NewNotFound("product not found: " + productCode).WithResource(productCode)
	}
	v, ok := attrs[attribute]
	if !ok {
		return variables.None, errs.NewNotFound("product attribute not found: " + attribute).WithResource(productCode)
	}
	return v, nil
}
