package vers

import (
	"context"
	"errors"
	"testing"

	"github.com/quay/vulndb/driver"
)

func TestTranslateRange(t *testing.T) {
	ctx := context.Background()
	tr := Translator{}
	tt := []struct {
		name      string
		typ       string
		ecosystem string
		events    []driver.RangeEvent
		want      string
		wantErr   bool
	}{
		{
			name:      "SemverFixed",
			typ:       "SEMVER",
			ecosystem: "npm",
			events: []driver.RangeEvent{
				{Introduced: "0"},
				{Fixed: "1.3.0"},
			},
			want: "vers:npm/<1.3.0",
		},
		{
			name:      "SemverBounded",
			typ:       "SEMVER",
			ecosystem: "Go",
			events: []driver.RangeEvent{
				{Introduced: "1.2.0"},
				{Fixed: "1.4.5"},
			},
			want: "vers:golang/>=1.2.0|<1.4.5",
		},
		{
			name:      "EcosystemLastAffected",
			typ:       "ECOSYSTEM",
			ecosystem: "Rocky Linux:9",
			events: []driver.RangeEvent{
				{Introduced: "1.0.0"},
				{LastAffected: "2.0.0"},
			},
			want: "vers:rpm/>=1.0.0|<=2.0.0",
		},
		{
			name:      "UnboundedBothEnds",
			typ:       "ECOSYSTEM",
			ecosystem: "Hackage",
			events: []driver.RangeEvent{
				{Introduced: "0"},
				{Limit: "*"},
			},
			want: "vers:generic/*",
		},
		{
			name:      "GitUnsupported",
			typ:       "GIT",
			ecosystem: "Go",
			events:    []driver.RangeEvent{{Introduced: "deadbeef"}},
			wantErr:   true,
		},
		{
			name:      "BadSemver",
			typ:       "SEMVER",
			ecosystem: "npm",
			events:    []driver.RangeEvent{{Fixed: "not.a.version"}},
			wantErr:   true,
		},
		{
			name:      "NoEvents",
			typ:       "SEMVER",
			ecosystem: "npm",
			wantErr:   true,
		},
		{
			name:      "ArbitraryLimit",
			typ:       "ECOSYSTEM",
			ecosystem: "PyPI",
			events:    []driver.RangeEvent{{Limit: "3.0.0"}},
			wantErr:   true,
		},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tr.TranslateRange(ctx, tc.typ, tc.ecosystem, tc.events, nil)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("got %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestGitIsUnsupported(t *testing.T) {
	_, err := Translator{}.TranslateRange(context.Background(), "GIT", "Go", []driver.RangeEvent{{Introduced: "0"}}, nil)
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("got %v, want ErrUnsupported", err)
	}
}

func TestVersioningScheme(t *testing.T) {
	tt := []struct{ in, want string }{
		{"npm", "npm"},
		{"crates.io", "cargo"},
		{"Rocky Linux:9", "rpm"},
		{"Alpine:v3.17", "apk"},
		{"Red Hat", "rpm"},
		{"SomethingNew", "generic"},
	}
	for _, tc := range tt {
		if got := VersioningScheme(tc.in); got != tc.want {
			t.Errorf("VersioningScheme(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
