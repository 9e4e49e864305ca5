package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"docchain/internal/backup"
	"docchain/internal/printer"
)

func newBackupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export and restore collections through the blob store",
		Long: `Backups copy stored documents verbatim as JSON lines into the configured
blob store (filesystem, S3 or memory). Restored documents are upgraded on
their next load like any other lagging document.`,
	}
	cmd.AddCommand(newBackupExportCmd(a), newBackupImportCmd(a), newBackupListCmd(a))
	return cmd
}

func newBackupExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export COLLECTION",
		Short: "Write every stored document of a collection to a new backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer func() { _ = a.close() }()
			coll, err := a.collection(cmd, args[0])
			if err != nil {
				return err
			}
			svc, err := a.backups(cmd)
			if err != nil {
				return err
			}
			info, err := svc.Export(cmd.Context(), coll)
			if err != nil {
				return err
			}
			printer.Success(cmd.OutOrStdout(), "exported %s documents to %s\n", info.Metadata[backup.MetaDocuments], info.Key)
			return nil
		},
	}
}

func newBackupImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import COLLECTION [KEY]",
		Short: "Restore a backup (the newest one when KEY is omitted)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer func() { _ = a.close() }()
			coll, err := a.collection(cmd, args[0])
			if err != nil {
				return err
			}
			svc, err := a.backups(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			var key string
			if len(args) == 2 {
				key = args[1]
			} else {
				if key, err = svc.Latest(ctx, coll.Name); err != nil {
					return err
				}
				printer.Step(cmd.OutOrStdout(), "restoring %s\n", key)
			}
			header, err := svc.Import(ctx, key, coll)
			if err != nil {
				return err
			}
			if header.SchemaVersion < coll.LatestVersion() {
				printer.Warning(cmd.OutOrStdout(), "backup taken at v%d; documents upgrade to v%d on load\n", header.SchemaVersion, coll.LatestVersion())
			}
			printer.Success(cmd.OutOrStdout(), "restored %d documents into %s\n", header.Documents, coll.Name)
			return nil
		},
	}
}

func newBackupListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list COLLECTION",
		Short: "List backups of a collection, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer func() { _ = a.close() }()
			coll, err := a.collection(cmd, args[0])
			if err != nil {
				return err
			}
			svc, err := a.backups(cmd)
			if err != nil {
				return err
			}
			infos, err := svc.List(cmd.Context(), coll.Name)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "KEY\tVERSION\tDOCUMENTS\tSIZE")
			for _, info := range infos {
				_, _ = fmt.Fprintf(tw, "%s\tv%s\t%s\t%d\n", info.Key,
					info.Metadata[backup.MetaSchemaVersion], info.Metadata[backup.MetaDocuments], info.Size)
			}
			return tw.Flush()
		},
	}
}
