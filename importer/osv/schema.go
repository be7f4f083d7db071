package osv

import (
	"encoding/json"
	"time"
)

// See https://ossf.github.io/osv-schema/ for the spec.
type (
	advisory struct {
		SchemaVersion string          `json:"schema_version"`
		ID            string          `json:"id"`
		Modified      time.Time       `json:"modified"`
		Published     time.Time       `json:"published"`
		Withdrawn     time.Time       `json:"withdrawn"`
		Aliases       []string        `json:"aliases"`
		Related       []string        `json:"related"`
		Summary       string          `json:"summary"`
		Details       string          `json:"details"`
		Severity      []severity      `json:"severity"`
		Affected      []affected      `json:"affected"`
		References    []reference     `json:"references"`
		Database      json.RawMessage `json:"database_specific"`
	}

	severity struct {
		Type  string `json:"type"`
		Score string `json:"score"`
	}

	affected struct {
		Package   *_package       `json:"package"`
		Ranges    []_range        `json:"ranges"`
		Versions  []string        `json:"versions"`
		Ecosystem json.RawMessage `json:"ecosystem_specific"`
		Database  json.RawMessage `json:"database_specific"`
	}

	_package struct {
		Ecosystem string `json:"ecosystem"`
		Name      string `json:"name"`
		PURL      string `json:"purl"`
	}

	_range struct {
		Type     string          `json:"type"`
		Repo     string          `json:"repo"`
		Events   []rangeEvent    `json:"events"`
		Database json.RawMessage `json:"database_specific"`
	}

	rangeEvent struct {
		Introduced   string `json:"introduced"`
		Fixed        string `json:"fixed"`
		LastAffected string `json:"last_affected"`
		Limit        string `json:"limit"`
	}

	reference struct {
		Type string `json:"type"`
		URL  string `json:"url"`
	}
)
