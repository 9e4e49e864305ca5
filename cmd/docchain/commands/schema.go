package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newSchemaCmd(a *app) *cobra.Command {
	var latestOnly bool
	cmd := &cobra.Command{
		Use:   "schema [COLLECTION]",
		Short: "Show collection schemas",
		Long: `Without arguments, lists every defined collection with its latest version,
upgrade mode, payload field sets and schema hash.

With a collection name, prints the full structural schema registered with
the storage engine (every historical payload version optional, the latest
required). --latest prints the latest-only schema writes are validated against.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer func() { _ = a.close() }()
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				if err := a.openRegistry(cmd); err != nil {
					return err
				}
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "NAME\tVERSION\tMODE\tREQUIRED\tOPTIONAL\tHASH")
				for _, c := range a.registry.Collections() {
					_, _ = fmt.Fprintf(tw, "%s\tv%d\t%s\t%s\t%s\t%s\n", c.Name, c.LatestVersion(), c.Mode,
						strings.Join(c.Fields.Required, ","), strings.Join(c.Fields.Optional, ","), shortHash(c.Hash))
				}
				return tw.Flush()
			}
			c, err := a.collection(cmd, args[0])
			if err != nil {
				return err
			}
			schema := c.Schema
			if latestOnly {
				schema = c.Latest
			}
			b, err := json.MarshalIndent(schema, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, string(b))
			return err
		},
	}
	cmd.Flags().BoolVar(&latestOnly, "latest", false, "Print the latest-only schema")
	return cmd
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
