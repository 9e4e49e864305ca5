// Package commands implements the docchain command tree.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the docchain command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "docchain",
		Short: "docchain - versioned document collections",
		Long: `docchain hosts document collections whose payload shape evolves through
an append-only chain of schema versions. Lagging documents are upgraded
lazily on load or, for staged collections, offered as a staged migration
that an operator applies explicitly.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		SilenceErrors:      true,
		SilenceUsage:       true,
		FParseErrWhitelist: cobra.FParseErrWhitelist{},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to docchain.yml (defaults plus DOCCHAIN_* env when omitted)")
	root.PersistentFlags().BoolVar(&a.trace, "trace", false, "Write one JSON line per engine operation to stderr")

	root.AddCommand(
		newSchemaCmd(a),
		newInspectCmd(a),
		newApplyCmd(a),
		newInsertCmd(a),
		newRemoveCmd(a),
		newBackupCmd(a),
	)
	return root
}

// SetVersionInfo sets the version string reported by --version.
func SetVersionInfo(root *cobra.Command, version, commit, date string) {
	root.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
}
