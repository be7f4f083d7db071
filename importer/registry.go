package importer

import (
	"sync"

	"github.com/quay/vulndb/driver"
)

var registry = struct {
	sync.Mutex
	fs map[string]driver.Factory
}{
	fs: make(map[string]driver.Factory),
}

// Register registers a Factory under the source name it constructs an
// Importer for.
//
// Register panics if the same name is used twice.
func Register(name string, f driver.Factory) {
	registry.Lock()
	defer registry.Unlock()
	if _, ok := registry.fs[name]; ok {
		panic("importer: duplicate name: " + name)
	}
	registry.fs[name] = f
}

// Registered returns a new map populated with the registered factories.
func Registered() map[string]driver.Factory {
	registry.Lock()
	defer registry.Unlock()
	r := make(map[string]driver.Factory, len(registry.fs))
	for k, v := range registry.fs {
		r[k] = v
	}
	return r
}
