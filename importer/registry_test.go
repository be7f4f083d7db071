package importer

import (
	"context"
	"testing"

	"github.com/quay/vulndb/driver"
)

func TestRegisterDuplicatePanics(t *testing.T) {
	f := func(_ context.Context) (driver.Importer, error) { return nil, nil }
	Register("registry-test", f)
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	Register("registry-test", f)
}

func TestRegisteredIsACopy(t *testing.T) {
	f := func(_ context.Context) (driver.Importer, error) { return nil, nil }
	Register("registry-copy-test", f)
	m := Registered()
	delete(m, "registry-copy-test")
	if _, ok := Registered()["registry-copy-test"]; !ok {
		t.Error("mutating the returned map affected the registry")
	}
}
