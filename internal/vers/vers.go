// Package vers translates source-specific version ranges into "vers"
// constraint expressions (https://github.com/package-url/purl-spec).
package vers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver"

	"github.com/quay/vulndb/driver"
)

// Translator implements driver.RangeTranslator for OSV-style ranges.
type Translator struct{}

var _ driver.RangeTranslator = Translator{}

// ErrUnsupported is reported for range types that have no version
// ordering this package can express, e.g. GIT.
var ErrUnsupported = errors.New("vers: unsupported range type")

// Scheme maps a lower-cased ecosystem to its vers versioning scheme.
// Ecosystems without a dedicated scheme fall back to "generic".
var scheme = map[string]string{
	"almalinux":   "rpm",
	"alpine":      "apk",
	"cargo":       "cargo",
	"crates.io":   "cargo",
	"debian":      "deb",
	"go":          "golang",
	"hex":         "hex",
	"mageia":      "rpm",
	"maven":       "maven",
	"npm":         "npm",
	"nuget":       "nuget",
	"opensuse":    "rpm",
	"packagist":   "composer",
	"photon os":   "rpm",
	"pub":         "pub",
	"pypi":        "pypi",
	"red hat":     "rpm",
	"rocky linux": "rpm",
	"rubygems":    "gem",
	"suse":        "rpm",
	"ubuntu":      "deb",
	"wolfi":       "apk",
}

// VersioningScheme reports the vers scheme for an ecosystem as reported
// in an advisory. Release-versioned ecosystems like "Alpine:v3.17" are
// truncated at the colon.
func VersioningScheme(ecosystem string) string {
	e := strings.ToLower(strings.TrimSpace(ecosystem))
	if idx := strings.Index(e, ":"); idx != -1 {
		e = e[:idx]
	}
	if s, ok := scheme[e]; ok {
		return s
	}
	return "generic"
}

// TranslateRange implements driver.RangeTranslator.
//
// Events are walked in order: "introduced" opens a lower bound,
// "fixed" and "last_affected" close an upper bound. An introduced
// version of "0" and a limit of "*" denote the unbounded ends of the
// range and contribute no constraint. A range with no bounded events
// translates to the match-everything constraint.
func (Translator) TranslateRange(_ context.Context, typ, ecosystem string, events []driver.RangeEvent, _ json.RawMessage) (string, error) {
	switch typ {
	case "SEMVER", "ECOSYSTEM":
	case "GIT":
		return "", fmt.Errorf("%w: %q", ErrUnsupported, typ)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupported, typ)
	}
	if len(events) == 0 {
		return "", errors.New("vers: range has no events")
	}

	var cs []string
	for _, ev := range events {
		var cmp, v string
		switch {
		case ev.Introduced == "0": // unbounded lower
			continue
		case ev.Introduced != "":
			cmp, v = ">=", ev.Introduced
		case ev.Fixed != "":
			cmp, v = "<", ev.Fixed
		case ev.LastAffected != "":
			cmp, v = "<=", ev.LastAffected
		case ev.Limit == "*": // unbounded upper
			continue
		case ev.Limit != "":
			return "", fmt.Errorf("vers: unsupported limit event %q", ev.Limit)
		default:
			return "", errors.New("vers: empty range event")
		}
		if typ == "SEMVER" {
			if _, err := semver.NewVersion(v); err != nil {
				return "", fmt.Errorf("vers: bad semver %q: %w", v, err)
			}
		}
		cs = append(cs, cmp+v)
	}

	s := VersioningScheme(ecosystem)
	if len(cs) == 0 {
		return "vers:" + s + "/*", nil
	}
	return "vers:" + s + "/" + strings.Join(cs, "|"), nil
}
