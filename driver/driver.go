// Package driver holds the interfaces a source-specific importer needs
// to implement and the capabilities supplied to it.
package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/quay/vulndb"
)

// Source identifies one external advisory feed.
//
// Name is the sole identity used to select which importers run and must
// be unique across all registered importers.
type Source struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Importer is the contract every source-specific ingestion pipeline
// implements.
type Importer interface {
	// Source reports the importer's static self-description. It is
	// called before scheduling, so it must not perform I/O.
	Source() Source
	// Init binds the source-scoped storage handle. It's called exactly
	// once, before RunImport.
	Init(ctx context.Context, store Store) error
	// RunImport performs the full fetch-normalize-store cycle. Any
	// returned error is fatal to this importer's run but not to
	// importers for other sources.
	RunImport(ctx context.Context) error
}

// Factory constructs an Importer at run-time.
type Factory func(ctx context.Context) (Importer, error)

// Store is the persistence capability handed to an Importer.
//
// Implementations are expected to be durable and to handle their own
// concurrency discipline; importers call it serially.
type Store interface {
	StoreVulnerabilities(ctx context.Context, vulns []*vulndb.Vulnerability) error
}

// RangeEvent is one opaque event inside an advisory's version range.
//
// Exactly one field is expected to be populated.
type RangeEvent struct {
	Introduced   string `json:"introduced,omitempty"`
	Fixed        string `json:"fixed,omitempty"`
	LastAffected string `json:"last_affected,omitempty"`
	Limit        string `json:"limit,omitempty"`
}

// RangeTranslator is the version-range algebra capability.
//
// TranslateRange turns a source-specific range description into a
// canonical constraint expression, or reports an error when the input
// is unsupported or malformed.
type RangeTranslator interface {
	TranslateRange(ctx context.Context, typ, ecosystem string, events []RangeEvent, databaseSpecific json.RawMessage) (string, error)
}

// ConfigUnmarshaler deserializes an importer's configuration into the
// provided struct.
type ConfigUnmarshaler func(interface{}) error

// Configurable is implemented by Importers that accept run-time
// configuration.
//
// If implemented, Configure is called after construction and before
// Init.
type Configurable interface {
	Configure(ctx context.Context, f ConfigUnmarshaler, c *http.Client) error
}

// ImportError is the failure of a single importer's run, tagged with
// the offending source's name.
type ImportError struct {
	Source string
	Err    error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("importer %q: %v", e.Source, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }
