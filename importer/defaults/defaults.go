// Package defaults registers the default importers via its init
// function.
//
// Importing this package makes all in-tree importers discoverable
// through the importer registry.
package defaults

import (
	"github.com/quay/vulndb/importer"
	"github.com/quay/vulndb/importer/osv"
)

func init() {
	importer.Register(osv.Name, osv.Factory)
}
