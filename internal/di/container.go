// internal/di/container.go
package di

import (
	"fmt"
	"sort"
	"sync"
)

// Service names registered by the application.
const (
	Logger   = "logger"
	Store    = "store"
	Index    = "index"
	Chapters = "chapters"
	Users    = "users"
	Tokens   = "tokens"
)

// Container is a name-keyed service registry.
type Container struct {
	services map[string]interface{}
	mutex    sync.RWMutex
}

func NewContainer() *Container {
	return &Container{services: make(map[string]interface{})}
}

// Register stores service under name, replacing any previous entry.
func (c *Container) Register(name string, service interface{}) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.services[name] = service
}

// Get returns the service registered under name, or nil.
func (c *Container) Get(name string) interface{} {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.services[name]
}

func (c *Container) Has(name string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	_, ok := c.services[name]
	return ok
}

// Names lists registered service names, sorted.
func (c *Container) Names() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	names := make([]string, 0, len(c.services))
	for name := range c.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve fetches name from c as a T.
func Resolve[T any](c *Container, name string) (T, error) {
	var zero T
	v := c.Get(name)
	if v == nil {
		return zero, fmt.Errorf("service %q is not registered", name)
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("service %q has type %T, want %T", name, v, zero)
	}
	return typed, nil
}
