package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/hvol/pkg/config"
	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/connector/passthru"
	"github.com/ajitpratap0/hvol/pkg/connector/plugin"
	"github.com/ajitpratap0/hvol/pkg/errors"
	"github.com/ajitpratap0/hvol/pkg/ids"
	"github.com/ajitpratap0/hvol/pkg/logger"
	"github.com/ajitpratap0/hvol/pkg/plist"
	"github.com/ajitpratap0/hvol/pkg/vol"
)

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List loadable and registered connectors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Loadable connectors:")
			for _, info := range plugin.List() {
				fmt.Fprintf(out, "  - %-10s value=%-4d v%d  %s\n", info.Name, info.Value, info.Version, info.Description)
			}

			lib, err := a.library(cmd.Context())
			if err != nil {
				return err
			}
			defer lib.Close(cmd.Context())

			fmt.Fprintln(out, "\nRegistered connectors:")
			for _, c := range lib.Connectors() {
				base := ""
				if c.Base {
					base = " (base)"
				}
				fmt.Fprintf(out, "  - %-10s value=%-4d refs=%d%s [%s]\n", c.Name, c.Value, c.RefCount, base, c.Caps)
			}
			return nil
		},
	}
}

func (a *app) envCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Resolve the default connector from " + config.ConnectorEnvVar,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if raw, ok := os.LookupEnv(config.ConnectorEnvVar); ok {
				fmt.Fprintf(out, "%s=%q\n", config.ConnectorEnvVar, raw)
			} else {
				fmt.Fprintf(out, "%s is not set\n", config.ConnectorEnvVar)
			}
			fmt.Fprintf(out, "selector: %s\n", a.cfg.Connector.Selector())

			lib, err := a.library(cmd.Context())
			if err != nil {
				return err
			}
			defer lib.Close(cmd.Context())

			prop := lib.DefaultConnector()
			cls, err := lib.Registry().Class(prop.ID)
			if err != nil {
				return err
			}
			info, err := lib.ConnectorInfoToString(prop.ID, prop.Info)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "default connector: %s (value %d, version %d)\n", cls.Name, cls.Value, cls.Version)
			fmt.Fprintf(out, "info: %q\n", info)
			return nil
		},
	}
}

func (a *app) demoCmd() *cobra.Command {
	var compression string
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Follow an external link and copy an object across containers",
		Long: `demo creates a source file holding a dataset and an index file holding an
external link to it. It opens the dataset's group through the link, copies the
dataset into the index file and prints how the containers and identities line up.

With --compression the files are opened through the pass-through connector
stacked on native, compressing dataset payloads.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lib, err := a.library(cmd.Context())
			if err != nil {
				return err
			}
			d := &demo{lib: lib, out: cmd.OutOrStdout()}
			err = d.run(cmd, compression)
			if cerr := lib.Close(cmd.Context()); cerr != nil {
				err = errors.Cleanup(err, cerr)
			}
			if err == nil && a.cfg.Metrics.Enabled {
				err = printDispatchCounts(d.out)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&compression, "compression", "", "Stack the pass-through connector with this codec (none, gzip, snappy, lz4, zstd, s2)")
	return cmd
}

type demo struct {
	lib  *vol.Library
	out  io.Writer
	open []ids.ID
}

// keep records id so it is closed when the demo ends
func (d *demo) keep(id ids.ID, err error) (ids.ID, error) {
	if err == nil {
		d.open = append(d.open, id)
	}
	return id, err
}

func (d *demo) run(cmd *cobra.Command, compression string) (err error) {
	ctx := cmd.Context()
	defer func() {
		for i := len(d.open) - 1; i >= 0; i-- {
			err = errors.Cleanup(err, d.lib.CloseObject(ctx, d.open[i]))
		}
	}()

	var fapl *plist.FileAccess
	if compression != "" {
		if fapl, err = d.stacked(cmd, compression); err != nil {
			return err
		}
		defer func() { err = errors.Cleanup(err, d.lib.ReleaseFileAccess(ctx, fapl)) }()
	}

	payload := bytes.Repeat([]byte("hvol"), 64)

	source, err := d.keep(d.lib.FileCreate(ctx, "source", core.FileReadWrite, fapl))
	if err != nil {
		return err
	}
	data, err := d.keep(d.lib.GroupCreate(ctx, source, "data"))
	if err != nil {
		return err
	}
	values, err := d.keep(d.lib.DatasetCreate(ctx, data, "values", "uint8"))
	if err != nil {
		return err
	}
	if err := d.lib.DatasetWrite(ctx, values, payload, nil); err != nil {
		return err
	}

	index, err := d.keep(d.lib.FileCreate(ctx, "index", core.FileReadWrite, fapl))
	if err != nil {
		return err
	}
	if err := d.lib.LinkCreateExternal(ctx, "source", "/data", index, "latest"); err != nil {
		return err
	}

	linked, err := d.keep(d.lib.GroupOpen(ctx, index, "latest"))
	if err != nil {
		return err
	}
	fileName, err := d.lib.FileName(ctx, linked)
	if err != nil {
		return err
	}
	objName, err := d.lib.ObjectName(ctx, linked)
	if err != nil {
		return err
	}
	fmt.Fprintf(d.out, "index:/latest resolves to %s:%s\n", fileName, objName)

	cIndex, cLinked, cSource := d.container(index), d.container(linked), d.container(source)
	sameFile, err := d.lib.SameContainer(ctx, cLinked, cSource)
	if err != nil {
		return err
	}
	fmt.Fprintf(d.out, "containers: index=%s linked=%s source=%s\n", cIndex.ID(), cLinked.ID(), cSource.ID())
	fmt.Fprintf(d.out, "linked group is in the source file: %t\n", sameFile)

	if err := d.lib.ObjectCopy(ctx, linked, "values", index, "copied"); err != nil {
		return err
	}
	copied, err := d.keep(d.lib.DatasetOpen(ctx, index, "copied"))
	if err != nil {
		return err
	}
	got, err := d.lib.DatasetRead(ctx, copied, nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(d.out, "copied %d bytes into index:/copied, contents match: %t\n", len(got), bytes.Equal(got, payload))

	same, err := d.lib.IsSame(ctx, linked, data)
	if err != nil {
		return err
	}
	fmt.Fprintf(d.out, "index:/latest is source:/data: %t\n", same)
	if same, err = d.lib.IsSame(ctx, copied, values); err != nil {
		return err
	}
	fmt.Fprintf(d.out, "index:/copied is source:/data/values: %t\n", same)

	native, err := d.lib.IsNative(ctx, copied, core.LevelTerminal)
	if err != nil {
		return err
	}
	fmt.Fprintf(d.out, "terminal connector is native: %t\n", native)

	if compression != "" {
		size, err := d.storageSize(cmd, values)
		if err != nil {
			return err
		}
		fmt.Fprintf(d.out, "stored %d payload bytes in %d bytes with %s\n", len(payload), size, compression)
	}
	return nil
}

// stacked returns a file access list for the pass-through connector over native
func (d *demo) stacked(cmd *cobra.Command, compression string) (*plist.FileAccess, error) {
	ctx := cmd.Context()
	id, err := d.lib.RegisterConnectorByName(ctx, passthru.Name, nil)
	if err != nil {
		return nil, err
	}
	fapl := plist.NewFileAccess()
	err = d.lib.SetFileAccessConnector(ctx, fapl, id, &passthru.Info{UnderName: "native", Compression: compression})
	// the list holds its own reference from here on
	if uerr := d.lib.UnregisterConnector(ctx, id); uerr != nil {
		err = errors.Cleanup(err, uerr)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("stacked pass-through connector", zap.String("compression", compression))
	return fapl, nil
}

func (d *demo) storageSize(cmd *cobra.Command, id ids.ID) (int64, error) {
	args := &core.DatasetGetArgs{Op: core.DatasetGetStorageSize}
	if err := d.lib.DatasetGet(cmd.Context(), id, args); err != nil {
		return 0, err
	}
	return args.StorageSize, nil
}

func (d *demo) container(id ids.ID) *vol.Container {
	o, err := d.lib.Object(id)
	if err != nil {
		// only called for handles the demo holds open
		panic(err)
	}
	return o.Container()
}

// printDispatchCounts prints the routed callback totals per connector and operation
func printDispatchCounts(out io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	var lines []string
	for _, mf := range families {
		if mf.GetName() != "hvol_dispatch_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			lines = append(lines, fmt.Sprintf("  %-10s %-22s %-8s %.0f",
				labels["connector"], labels["operation"], labels["status"], m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	fmt.Fprintln(out, "\nDispatched callbacks:")
	for _, l := range lines {
		fmt.Fprintln(out, l)
	}
	return nil
}
