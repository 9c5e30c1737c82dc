// internal/di/container.go

// Package di holds the service registry the wizard is wired through:
// app.InitServices registers each service under a short name
// ("project", "llm", "outline", ...) and the router pulls them back
// out with type assertions at setup time.
package di

import (
	"sync"
)

// Container is a string-keyed registry of service singletons. Writes
// happen during startup wiring; after that it is read-only in
// practice, but access stays locked so tests can re-wire freely.
type Container struct {
	mu       sync.RWMutex
	services map[string]interface{}
}

func NewContainer() *Container {
	return &Container{
		services: make(map[string]interface{}),
	}
}

var (
	globalContainer *Container
	once            sync.Once
)

// GetContainer returns the process-wide container.
func GetContainer() *Container {
	once.Do(func() {
		globalContainer = NewContainer()
	})
	return globalContainer
}

// Register stores a service under a name, replacing any earlier one.
func (c *Container) Register(name string, service interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[name] = service
}

// Get returns the service registered under name, or nil. Callers are
// expected to type-assert the result.
func (c *Container) Get(name string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.services[name]
}

// Has reports whether a service is registered under name.
func (c *Container) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.services[name]
	return exists
}

// Clear drops every registration. Used by tests that rebuild the
// wiring from scratch.
func (c *Container) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services = make(map[string]interface{})
}
