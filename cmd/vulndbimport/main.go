// Vulndbimport imports advisories from the named sources into
// per-source SQLite databases.
package main

import (
	"context"
	"os"
	"strings"

	"github.com/crgimenes/goconfig"
	"github.com/quay/zlog"
	"github.com/rs/zerolog"

	"github.com/quay/vulndb/driver"
	"github.com/quay/vulndb/importer"
	_ "github.com/quay/vulndb/importer/defaults"
	"github.com/quay/vulndb/store/sqlite"
)

// Config this struct is using the goconfig library for simple flag and
// env var parsing. See: https://github.com/crgimenes/goconfig
type Config struct {
	Sources  string `cfg:"SOURCES" cfgHelper:"Comma-separated names of sources to import."`
	DBDir    string `cfgDefault:"." cfg:"DB_DIR" cfgHelper:"Directory the per-source SQLite databases are created in."`
	LogLevel string `cfgDefault:"info" cfg:"LOG_LEVEL" cfgHelper:"Log levels: debug, info, warn, error"`
	Strict   bool   `cfgDefault:"false" cfg:"STRICT" cfgHelper:"Exit non-zero when any importer fails."`
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()
	conf := Config{}
	if err := goconfig.Parse(&conf); err != nil {
		zlog.Error(ctx).Err(err).Msg("failed to parse config")
		return 2
	}

	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(logLevel(conf)).
		With().Timestamp().Logger()
	zlog.Set(&l)

	var sources []string
	for _, s := range strings.Split(conf.Sources, ",") {
		if s = strings.TrimSpace(s); s != "" {
			sources = append(sources, s)
		}
	}
	if len(sources) == 0 {
		zlog.Error(ctx).Msg("no sources specified, set SOURCES")
		return 2
	}

	newStore := func(ctx context.Context, src driver.Source) (driver.Store, error) {
		return sqlite.Open(ctx, conf.DBDir, src)
	}
	mgr, err := importer.NewManager(ctx, newStore, importer.WithStrictStatus(conf.Strict))
	if err != nil {
		zlog.Error(ctx).Err(err).Msg("failed to create manager")
		return 1
	}
	if err := mgr.Run(ctx, sources); err != nil {
		zlog.Error(ctx).Err(err).Msg("import failed")
		return 1
	}
	return 0
}

func logLevel(conf Config) zerolog.Level {
	switch strings.ToLower(conf.LogLevel) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	}
	return zerolog.InfoLevel
}
