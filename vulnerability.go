package vulndb

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/package-url/packageurl-go"
)

// Vulnerability is the canonical form of a security advisory after
// normalization, as handed to a Store.
//
// Importers populate ID, Aliases, Description, MatchingCriteria and the
// timestamps. The remaining fields are reserved for enrichment stages
// that run outside the import path.
type Vulnerability struct {
	// ID is the source-assigned identifier, e.g. a CVE or GHSA id.
	ID string `json:"id"`
	// Aliases are identifiers for the same vulnerability in other
	// databases, in the order the source reported them.
	Aliases []string `json:"aliases,omitempty"`
	// Description is the long-form description, usually markdown.
	Description string `json:"description,omitempty"`
	// Severities is reserved for severity enrichment.
	Severities []Severity `json:"severities,omitempty"`
	// References is reserved for reference enrichment.
	References []Reference `json:"references,omitempty"`
	// CWEs is reserved for weakness enrichment.
	CWEs []int `json:"cwes,omitempty"`
	// MatchingCriteria is the set of derived (package, version
	// constraint) pairs. Nil when none could be derived; never an empty
	// non-nil slice.
	MatchingCriteria []MatchingCriteria `json:"matching_criteria,omitempty"`
	// EPSS is reserved for exploit-prediction enrichment.
	EPSS *EPSS `json:"epss,omitempty"`

	Published time.Time `json:"published,omitempty"`
	Modified  time.Time `json:"modified,omitempty"`
	Withdrawn time.Time `json:"withdrawn,omitempty"`
}

// MatchingCriteria is one normalized (package, version constraint) pair
// derived from an advisory's affected entries.
//
// Instances are only ever constructed from a successfully parsed
// package URL and a successfully translated version constraint.
type MatchingCriteria struct {
	// VulnID is set by the Store when the criteria row is attached to a
	// vulnerability; importers leave it empty.
	VulnID string
	// PURL identifies the affected package.
	PURL packageurl.PackageURL
	// Vers is the canonical version constraint, in "vers" notation.
	Vers string
	// CPE and Versions are reserved for sources that report affected
	// products or explicit version enumerations.
	CPE      string
	Versions []string
}

type criteriaJSON struct {
	VulnID   string   `json:"vuln_id,omitempty"`
	PURL     string   `json:"purl"`
	Vers     string   `json:"vers"`
	CPE      string   `json:"cpe,omitempty"`
	Versions []string `json:"versions,omitempty"`
}

// MarshalJSON implements json.Marshaler.
//
// The package URL round-trips through its canonical string form.
func (c MatchingCriteria) MarshalJSON() ([]byte, error) {
	return json.Marshal(criteriaJSON{
		VulnID:   c.VulnID,
		PURL:     c.PURL.String(),
		Vers:     c.Vers,
		CPE:      c.CPE,
		Versions: c.Versions,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *MatchingCriteria) UnmarshalJSON(b []byte) error {
	var j criteriaJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	purl, err := packageurl.FromString(j.PURL)
	if err != nil {
		return fmt.Errorf("vulndb: bad purl in matching criteria: %w", err)
	}
	c.VulnID = j.VulnID
	c.PURL = purl
	c.Vers = j.Vers
	c.CPE = j.CPE
	c.Versions = j.Versions
	return nil
}

// Severity is an upstream severity score of the noted type.
type Severity struct {
	Type  string `json:"type"`
	Score string `json:"score"`
}

// Reference is a link published alongside an advisory.
type Reference struct {
	Type string `json:"type,omitempty"`
	URL  string `json:"url"`
}

// EPSS is an exploit-prediction score.
type EPSS struct {
	Score      float64 `json:"score"`
	Percentile float64 `json:"percentile"`
}
