// Package importer coordinates running source-specific importers and
// keeps the registry they're discovered through.
package importer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/quay/zlog"
	"golang.org/x/sync/semaphore"

	"github.com/quay/vulndb/driver"
)

var (
	runCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vulndb",
		Subsystem: "importer",
		Name:      "runs_total",
		Help:      "Import runs per source.",
	}, []string{"source", "success"})
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vulndb",
		Subsystem: "importer",
		Name:      "run_duration_seconds",
		Help:      "Duration of import runs per source.",
	}, []string{"source"})
)

// ErrNoSources is reported when Run is called without any source names.
var ErrNoSources = errors.New("importer: no sources requested")

// Configs maps a source name to its importer's configuration.
type Configs map[string]driver.ConfigUnmarshaler

// StoreFactory constructs the storage handle scoped to one source.
type StoreFactory func(ctx context.Context, src driver.Source) (driver.Store, error)

// Manager oversees the construction, configuration and invocation of
// importers.
type Manager struct {
	// provides run-time importer construction.
	factories map[string]driver.Factory
	// constructs a per-source storage handle.
	newStore StoreFactory
	// configs provided to importers once constructed.
	configs Configs
	client  *http.Client
	// strict makes Run's return reflect per-importer failures. When
	// unset, failures are logged and Run reports success once all
	// importers have finished.
	strict bool
}

// NewManager returns a Manager ready to have its Run method called.
func NewManager(ctx context.Context, store StoreFactory, opts ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("importer: no store factory provided")
	}
	m := &Manager{
		factories: Registered(),
		newStore:  store,
		client:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Run constructs the importers registered for the requested source
// names and runs them concurrently, one worker per importer.
//
// Every importer starts immediately; there is no queueing. A failing
// importer does not interrupt its siblings. Run returns once all
// importers have finished.
func (m *Manager) Run(ctx context.Context, sources []string) error {
	ctx = zlog.ContextWithValues(ctx, "component", "importer/Manager.Run")
	if len(sources) == 0 {
		return ErrNoSources
	}
	want := make(map[string]bool, len(sources))
	for _, s := range sources {
		want[s] = true
	}

	type task struct {
		imp   driver.Importer
		src   driver.Source
		store driver.Store
	}
	var tasks []task
	defer func() {
		for _, t := range tasks {
			c, ok := t.store.(io.Closer)
			if !ok {
				continue
			}
			if err := c.Close(); err != nil {
				zlog.Warn(ctx).
					Str("source", t.src.Name).
					Err(err).
					Msg("error closing store")
			}
		}
	}()
	for name, f := range m.factories {
		if !want[name] {
			continue
		}
		delete(want, name)
		imp, err := f(ctx)
		if err != nil {
			return &driver.ImportError{Source: name, Err: err}
		}
		src := imp.Source()
		if c, ok := imp.(driver.Configurable); ok {
			cfg := m.configs[src.Name]
			if cfg == nil {
				cfg = noopConfig
			}
			if err := c.Configure(ctx, cfg, m.client); err != nil {
				return &driver.ImportError{Source: src.Name, Err: err}
			}
		}
		store, err := m.newStore(ctx, src)
		if err != nil {
			return &driver.ImportError{Source: src.Name, Err: err}
		}
		if err := imp.Init(ctx, store); err != nil {
			if c, ok := store.(io.Closer); ok {
				c.Close()
			}
			return &driver.ImportError{Source: src.Name, Err: err}
		}
		tasks = append(tasks, task{imp: imp, src: src, store: store})
	}
	for name := range want {
		zlog.Warn(ctx).
			Str("source", name).
			Msg("no importer registered for requested source")
	}
	zlog.Info(ctx).
		Int("count", len(tasks)).
		Msg("running importers")

	// One worker per task; the semaphore only provides the drain
	// barrier.
	n := int64(len(tasks))
	sem := semaphore.NewWeighted(n)
	errChan := make(chan error, len(tasks))
	for i := range tasks {
		if err := sem.Acquire(ctx, 1); err != nil {
			zlog.Error(ctx).Err(err).Msg("sem acquire failed, ending import run")
			break
		}
		go func(t task) {
			defer sem.Release(1)
			ctx := zlog.ContextWithValues(ctx, "source", t.src.Name)
			start := time.Now()
			err := t.imp.RunImport(ctx)
			runDuration.WithLabelValues(t.src.Name).Observe(time.Since(start).Seconds())
			runCounter.WithLabelValues(t.src.Name, strconv.FormatBool(err == nil)).Inc()
			if err != nil {
				errChan <- &driver.ImportError{Source: t.src.Name, Err: err}
			}
		}(tasks[i])
	}

	// Unconditionally wait for all in-flight importers; they're
	// guaranteed to release their sems.
	sem.Acquire(context.Background(), n)

	close(errChan)
	if len(errChan) != 0 {
		var b strings.Builder
		b.WriteString("import errors:")
		for err := range errChan {
			b.WriteString("\n\t")
			b.WriteString(err.Error())
		}
		err := errors.New(b.String())
		zlog.Error(ctx).Err(err).Msg("importers reported errors")
		if m.strict {
			return err
		}
	}
	return nil
}

// NoopConfig is used when an explicit config is not provided.
func noopConfig(_ interface{}) error { return nil }
