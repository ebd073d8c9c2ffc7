// Package hvol is a connector layer for hierarchical data containers.
//
// Files, groups, datasets, committed datatypes, attributes, maps and links
// are opened through connectors: pluggable classes that decide where and how
// the data lives. hvol sits between callers and connectors and keeps the
// bookkeeping straight:
//
//   - a registry of connector classes with counted handles
//   - counted Containers binding one open storage instance to its connector
//   - Objects registered under handles, each holding its Container open
//   - a per-call stack of active Containers for the primary, source and
//     destination roles
//   - wrap and unwrap of objects for stacked connectors
//   - identity checks across connector stacks and external links
//
// # Packages
//
//	pkg/vol                 the object layer: Library, Container, Object, contexts
//	pkg/connector/core      the connector class and its callback interfaces
//	pkg/connector/registry  counted connector handles and lookup
//	pkg/connector/plugin    catalog of loadable connectors
//	pkg/connector/native    in-memory terminal connector with JSON snapshots
//	pkg/connector/passthru  stacking connector that compresses payloads
//	pkg/ids                 typed, counted handle table
//	pkg/config              YAML and HVOL_* environment configuration
//
// # Quick Start
//
//	import (
//	    "context"
//
//	    "github.com/ajitpratap0/hvol/pkg/connector/core"
//	    "github.com/ajitpratap0/hvol/pkg/vol"
//	)
//
//	ctx := context.Background()
//	lib, err := vol.New(ctx, nil)
//	if err != nil {
//	    return err
//	}
//	defer lib.Close(ctx)
//
//	file, err := lib.FileCreate(ctx, "results", core.FileReadWrite, nil)
//	dset, err := lib.DatasetCreate(ctx, file, "values", "float64")
//	err = lib.DatasetWrite(ctx, dset, payload, nil)
//
// The default connector is native. Set HVOL_VOL_CONNECTOR to choose another,
// for example:
//
//	HVOL_VOL_CONNECTOR='passthru {"under_name":"native","compression":"zstd"}'
//
// The hvol command in cmd/hvol lists connectors, resolves the environment
// default and runs a demonstration across two files.
package hvol
