// Package osv imports OSV-formatted advisories.
//
// Advisories are discovered per ecosystem from the OSV data dumps and
// normalized one at a time; an archive is never held in memory whole.
package osv

import (
	"archive/zip"
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/package-url/packageurl-go"
	"github.com/quay/zlog"

	"github.com/quay/vulndb"
	"github.com/quay/vulndb/driver"
	"github.com/quay/vulndb/internal/vers"
	"github.com/quay/vulndb/pkg/tmp"
)

// Name is the source name this importer registers under.
const Name = `osv`

// DefaultURL is the bucket provided by the OSV project.
//
//doc:url importer
const DefaultURL = `https://osv-vulnerabilities.storage.googleapis.com/`

// Factory constructs the importer with its default configuration.
func Factory(_ context.Context) (driver.Importer, error) {
	return &importer{}, nil
}

type importer struct {
	c     *http.Client
	root  *url.URL
	store driver.Store
	vers  driver.RangeTranslator
	// Skip is a bool-and-map-of-bool: extant entries are ecosystems
	// this importer leaves to a dedicated importer elsewhere.
	skip map[string]bool
}

var _ driver.Importer = (*importer)(nil)
var _ driver.Configurable = (*importer)(nil)

// Config is the configuration this importer accepts.
//
// By convention, it's at a key called "osv".
type Config struct {
	// The URL serving OSV data dumps.
	URL string `json:"url" yaml:"url"`
	// Skiplist is a list of ecosystems to leave to dedicated importers.
	// When unset, DefaultSkiplist is used.
	Skiplist []string `json:"skiplist" yaml:"skiplist"`
}

// DefaultSkiplist names the ecosystems covered by dedicated importers,
// which this importer must not duplicate.
var DefaultSkiplist = []string{
	"Debian",
	"Maven",
	"NuGet",
	"Packagist",
	"Pub",
	"PyPI",
	"Red Hat",
	"Rocky Linux",
	"RubyGems",
	"SUSE",
	"Ubuntu",
	"Wolfi",
	"crates.io",
	"npm",
	"openSUSE",
}

// Source implements driver.Importer.
func (u *importer) Source() driver.Source {
	return driver.Source{
		Name:        Name,
		Description: "Open Source Vulnerabilities database",
		URL:         "https://osv.dev/",
	}
}

// Configure implements driver.Configurable.
func (u *importer) Configure(ctx context.Context, f driver.ConfigUnmarshaler, c *http.Client) error {
	ctx = zlog.ContextWithValues(ctx, "component", "importer/osv/importer.Configure")
	var err error

	u.c = c
	u.root, err = url.Parse(DefaultURL)
	if err != nil {
		panic(fmt.Sprintf("programmer error: %v", err))
	}

	var cfg Config
	if err := f(&cfg); err != nil {
		return err
	}
	if cfg.URL != "" {
		u.root, err = url.Parse(cfg.URL)
		if err != nil {
			return err
		}
	}
	sl := DefaultSkiplist
	if cfg.Skiplist != nil {
		sl = cfg.Skiplist
	}
	u.skip = make(map[string]bool, len(sl))
	for _, e := range sl {
		u.skip[e] = true
	}

	zlog.Debug(ctx).Msg("loaded incoming config")
	return nil
}

// Init implements driver.Importer.
func (u *importer) Init(_ context.Context, store driver.Store) error {
	u.store = store
	if u.c == nil {
		u.c = http.DefaultClient
	}
	if u.root == nil {
		r, err := url.Parse(DefaultURL)
		if err != nil {
			panic(fmt.Sprintf("programmer error: %v", err))
		}
		u.root = r
	}
	if u.skip == nil {
		u.skip = make(map[string]bool, len(DefaultSkiplist))
		for _, e := range DefaultSkiplist {
			u.skip[e] = true
		}
	}
	if u.vers == nil {
		u.vers = vers.Translator{}
	}
	return nil
}

// RunImport implements driver.Importer.
func (u *importer) RunImport(ctx context.Context) error {
	ctx = zlog.ContextWithValues(ctx, "component", "importer/osv/importer.RunImport")
	ecosystems, err := u.ecosystems(ctx)
	if err != nil {
		return err
	}
	zlog.Info(ctx).
		Strs("ecosystems", ecosystems).
		Msg("discovered ecosystems")

	for _, e := range ecosystems {
		ctx := zlog.ContextWithValues(ctx, "ecosystem", e)
		if u.skip[e] {
			zlog.Info(ctx).Msg("skipping ecosystem")
			continue
		}
		zlog.Info(ctx).Msg("downloading archive")
		f, err := u.fetchArchive(ctx, e)
		if err != nil {
			return err
		}
		err = u.processArchive(ctx, f)
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// Ecosystems fetches the manifest of ecosystem names, one per line,
// and returns them sorted.
func (u *importer) ecosystems(ctx context.Context) ([]string, error) {
	uri := u.root.ResolveReference(&url.URL{Path: "ecosystems.txt"})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("osv: martian request: %w", err)
	}
	res, err := u.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("osv: unexpected response from %q: %v", res.Request.URL.String(), res.Status)
	}

	var out []string
	s := bufio.NewScanner(res.Body)
	for s.Scan() {
		e := strings.TrimSpace(s.Text())
		if e == "" {
			continue
		}
		out = append(out, e)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// FetchArchive downloads the ecosystem's advisory archive into a
// temporary file that's removed on Close.
func (u *importer) fetchArchive(ctx context.Context, ecosystem string) (*tmp.File, error) {
	// ResolveReference percent-encodes the ecosystem name; notably,
	// spaces become "%20".
	uri := u.root.ResolveReference(&url.URL{Path: path.Join(ecosystem, "all.zip")})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("osv: martian request: %w", err)
	}
	res, err := u.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("osv: unexpected response from %q: %v", res.Request.URL.String(), res.Status)
	}
	f, err := tmp.Spool(res.Body, "osv.fetch.*.zip")
	if err != nil {
		return nil, err
	}
	zlog.Debug(ctx).
		Str("filename", f.Name()).
		Msg("spooled archive")
	return f, nil
}

// ProcessArchive walks the archive's entries, decoding and normalizing
// one advisory at a time.
func (u *importer) processArchive(ctx context.Context, f *tmp.File) error {
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	z, err := zip.NewReader(f, fi.Size())
	if err != nil {
		return err
	}
	var ct int
	for _, zf := range z.File {
		ctx := zlog.ContextWithValues(ctx, "advisory", strings.TrimSuffix(path.Base(zf.Name), ".json"))
		rc, err := zf.Open()
		if err != nil {
			return err
		}
		var a advisory
		err = json.NewDecoder(rc).Decode(&a)
		rc.Close()
		if err != nil {
			return fmt.Errorf("osv: decoding %q: %w", zf.Name, err)
		}
		if err := u.processAdvisory(ctx, &a); err != nil {
			return err
		}
		ct++
	}
	zlog.Info(ctx).
		Int("count", ct).
		Msg("processed advisories")
	return nil
}

// ProcessAdvisory derives matching criteria from the advisory's
// affected entries, assembles the canonical vulnerability and stores
// it.
//
// Affected entries without a usable package URL and ranges that fail
// translation degrade the criteria set but never abort the advisory.
func (u *importer) processAdvisory(ctx context.Context, a *advisory) error {
	var criteria []vulndb.MatchingCriteria
	for i := range a.Affected {
		af := &a.Affected[i]
		if af.Package == nil || af.Package.PURL == "" {
			zlog.Debug(ctx).Msg("no package information, skipping affected entry")
			continue
		}
		purl, err := packageurl.FromString(af.Package.PURL)
		if err != nil {
			zlog.Warn(ctx).
				Str("purl", af.Package.PURL).
				Err(err).
				Msg("invalid purl, skipping affected entry")
			continue
		}
		for _, r := range af.Ranges {
			vc, err := u.vers.TranslateRange(ctx, r.Type, af.Package.Ecosystem, genericEvents(r.Events), r.Database)
			if err != nil {
				zlog.Warn(ctx).
					Str("type", r.Type).
					Err(err).
					Msg("range translation failed, skipping range")
				continue
			}
			criteria = append(criteria, vulndb.MatchingCriteria{
				PURL: purl,
				Vers: vc,
			})
		}
	}

	v := &vulndb.Vulnerability{
		ID:               a.ID,
		Aliases:          a.Aliases,
		Description:      a.Details,
		MatchingCriteria: criteria,
		Published:        a.Published,
		Modified:         a.Modified,
		Withdrawn:        a.Withdrawn,
	}
	return u.store.StoreVulnerabilities(ctx, []*vulndb.Vulnerability{v})
}

func genericEvents(evs []rangeEvent) []driver.RangeEvent {
	out := make([]driver.RangeEvent, len(evs))
	for i, ev := range evs {
		out[i] = driver.RangeEvent{
			Introduced:   ev.Introduced,
			Fixed:        ev.Fixed,
			LastAffected: ev.LastAffected,
			Limit:        ev.Limit,
		}
	}
	return out
}
