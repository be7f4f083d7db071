package importer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/quay/zlog"

	"github.com/quay/vulndb"
	"github.com/quay/vulndb/driver"
)

type fakeImporter struct {
	name string
	fail error

	mu  sync.Mutex
	ran bool
}

func (f *fakeImporter) Source() driver.Source {
	return driver.Source{Name: f.name}
}

func (f *fakeImporter) Init(_ context.Context, _ driver.Store) error { return nil }

func (f *fakeImporter) RunImport(_ context.Context) error {
	f.mu.Lock()
	f.ran = true
	f.mu.Unlock()
	return f.fail
}

type fakeStore struct {
	mu     sync.Mutex
	closed bool
}

func (s *fakeStore) StoreVulnerabilities(_ context.Context, _ []*vulndb.Vulnerability) error {
	return nil
}

func (s *fakeStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func managerFor(t *testing.T, imps []*fakeImporter, opts ...ManagerOption) (*Manager, map[string]*fakeStore) {
	t.Helper()
	ctx := zlog.Test(context.Background(), t)
	fs := make(map[string]driver.Factory, len(imps))
	for _, imp := range imps {
		imp := imp
		fs[imp.name] = func(_ context.Context) (driver.Importer, error) { return imp, nil }
	}
	stores := make(map[string]*fakeStore)
	newStore := func(_ context.Context, src driver.Source) (driver.Store, error) {
		s := &fakeStore{}
		stores[src.Name] = s
		return s, nil
	}
	opts = append([]ManagerOption{WithFactories(fs)}, opts...)
	m, err := NewManager(ctx, newStore, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return m, stores
}

func TestRunNoSources(t *testing.T) {
	m, _ := managerFor(t, nil)
	ctx := zlog.Test(context.Background(), t)
	if err := m.Run(ctx, nil); !errors.Is(err, ErrNoSources) {
		t.Errorf("got %v, want ErrNoSources", err)
	}
	if err := m.Run(ctx, []string{}); !errors.Is(err, ErrNoSources) {
		t.Errorf("got %v, want ErrNoSources", err)
	}
}

func TestRunFailureIsolation(t *testing.T) {
	good := &fakeImporter{name: "good"}
	bad := &fakeImporter{name: "bad", fail: errors.New("manifest unreachable")}
	m, stores := managerFor(t, []*fakeImporter{good, bad})
	ctx := zlog.Test(context.Background(), t)

	// Default behavior reports success regardless of per-importer
	// failures.
	if err := m.Run(ctx, []string{"good", "bad"}); err != nil {
		t.Errorf("got %v, want nil", err)
	}
	if !good.ran || !bad.ran {
		t.Errorf("ran: good=%v bad=%v, want both", good.ran, bad.ran)
	}
	for name, s := range stores {
		if !s.closed {
			t.Errorf("store for %q not closed", name)
		}
	}
}

func TestRunStrictStatus(t *testing.T) {
	good := &fakeImporter{name: "good"}
	bad := &fakeImporter{name: "bad", fail: errors.New("manifest unreachable")}
	m, _ := managerFor(t, []*fakeImporter{good, bad}, WithStrictStatus(true))
	ctx := zlog.Test(context.Background(), t)

	err := m.Run(ctx, []string{"good", "bad"})
	if err == nil {
		t.Fatal("got nil, want error")
	}
	if !strings.Contains(err.Error(), `importer "bad"`) {
		t.Errorf("error %q does not name the failing source", err)
	}
	if !good.ran {
		t.Error("sibling importer did not run")
	}
}

func TestRunFiltersSources(t *testing.T) {
	a := &fakeImporter{name: "a"}
	b := &fakeImporter{name: "b"}
	m, stores := managerFor(t, []*fakeImporter{a, b})
	ctx := zlog.Test(context.Background(), t)

	if err := m.Run(ctx, []string{"b", "unknown"}); err != nil {
		t.Fatal(err)
	}
	if a.ran {
		t.Error("unrequested importer ran")
	}
	if !b.ran {
		t.Error("requested importer did not run")
	}
	if _, ok := stores["a"]; ok {
		t.Error("store constructed for unrequested source")
	}
}

func TestRunConfiguresImporters(t *testing.T) {
	imp := &configurableImporter{fakeImporter: fakeImporter{name: "c"}}
	ctx := zlog.Test(context.Background(), t)
	fs := map[string]driver.Factory{
		"c": func(_ context.Context) (driver.Importer, error) { return imp, nil },
	}
	newStore := func(_ context.Context, _ driver.Source) (driver.Store, error) {
		return &fakeStore{}, nil
	}
	m, err := NewManager(ctx, newStore,
		WithFactories(fs),
		WithConfigs(Configs{
			"c": func(v interface{}) error {
				return json.Unmarshal([]byte(`{"tag":"set"}`), v)
			},
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Run(ctx, []string{"c"}); err != nil {
		t.Fatal(err)
	}
	if !imp.configured {
		t.Error("importer was not configured")
	}
}

type configurableImporter struct {
	fakeImporter
	configured bool
}

func (c *configurableImporter) Configure(_ context.Context, f driver.ConfigUnmarshaler, _ *http.Client) error {
	var v struct {
		Tag string `json:"tag"`
	}
	if err := f(&v); err != nil {
		return err
	}
	c.configured = v.Tag == "set"
	return nil
}
