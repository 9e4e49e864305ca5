package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"docchain/internal/core"
	"docchain/internal/printer"
	"docchain/pkg/domain"
)

func newInspectCmd(a *app) *cobra.Command {
	var state string
	cmd := &cobra.Command{
		Use:   "inspect COLLECTION [ID]",
		Short: "Classify documents against the latest schema",
		Long: `Loads documents through the engine, which upgrades lagging documents and
classifies each one as current, pending (a staged migration is available)
or unrecognized (matches neither the latest schema nor any older version).

With an ID, prints the document and, when pending, its staged payload.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer func() { _ = a.close() }()
			if _, err := a.collection(cmd, args[0]); err != nil {
				return err
			}
			if err := a.openEngine(cmd); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) == 2 {
				doc, err := a.engine.Get(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return printDocument(out, doc)
			}
			var filter core.Filter
			if state != "" {
				filter = core.HasState(domain.MigrationState(state))
			}
			docs, findErr := a.engine.Find(cmd.Context(), args[0], filter)
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tVERSION\tSTATE\tREASON")
			counts := map[domain.MigrationState]int{}
			for _, doc := range docs {
				counts[doc.State]++
				_, _ = fmt.Fprintf(tw, "%s\tv%d\t%s\t%s\n", doc.ID(), domain.RecordedVersion(doc.Record), printer.State(doc.State), doc.Reason)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "\n%d current, %d pending, %d unrecognized\n",
				counts[domain.StateCurrent], counts[domain.StatePending], counts[domain.StateUnrecognized])
			if findErr != nil {
				printer.Warning(cmd.ErrOrStderr(), "some documents failed to upgrade:\n%v\n", findErr)
				return findErr
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "Only show documents in state: current, pending or unrecognized")
	return cmd
}

func newApplyCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "apply COLLECTION [ID...]",
		Short: "Write staged migrations back to storage",
		Long: `Applies the staged migration computed on load to each named document, or
to every pending document with --all. Documents that are not pending are
rejected.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer func() { _ = a.close() }()
			if _, err := a.collection(cmd, args[0]); err != nil {
				return err
			}
			if !all && len(args) < 2 {
				return printer.Error(cmd.ErrOrStderr(), "Nothing to apply", "No document ids given.",
					"Pass one or more document ids", "Use --all to apply every pending document")
			}
			if all && len(args) > 1 {
				return printer.Error(cmd.ErrOrStderr(), "Ambiguous apply", "--all cannot be combined with document ids.",
					"Drop the ids to apply every pending document", "Drop --all to apply only the named documents")
			}
			if err := a.openEngine(cmd); err != nil {
				return err
			}
			ctx := cmd.Context()
			ids := args[1:]
			var loadErr error
			if all {
				pending, err := a.engine.Find(ctx, args[0], core.HasState(domain.StatePending))
				if err != nil {
					printer.Warning(cmd.ErrOrStderr(), "some documents failed to load: %v\n", err)
					loadErr = err
				}
				ids = make([]string, 0, len(pending))
				for _, doc := range pending {
					ids = append(ids, doc.ID())
				}
			}
			out := cmd.OutOrStdout()
			for _, id := range ids {
				doc, err := a.engine.ApplyStaged(ctx, args[0], id)
				if err != nil {
					return err
				}
				printer.Success(out, "%s now %s\n", id, printer.State(doc.State))
			}
			if len(ids) == 0 {
				_, _ = fmt.Fprintln(out, "no pending documents")
			}
			return loadErr
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Apply every pending document")
	return cmd
}

func newInsertCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "insert COLLECTION PAYLOAD_JSON",
		Short: "Insert a document at the latest version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer func() { _ = a.close() }()
			if _, err := a.collection(cmd, args[0]); err != nil {
				return err
			}
			var payload map[string]any
			if err := json.Unmarshal([]byte(args[1]), &payload); err != nil {
				return printer.Error(cmd.ErrOrStderr(), "Invalid payload", err.Error(), `Pass a JSON object, e.g. '{"content":"milk"}'`)
			}
			if err := a.openEngine(cmd); err != nil {
				return err
			}
			doc, err := a.engine.Insert(cmd.Context(), args[0], payload)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), doc.ID())
			return err
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	var where []string
	cmd := &cobra.Command{
		Use:   "remove COLLECTION [ID]",
		Short: "Remove a document, or every document matching --where path=value",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer func() { _ = a.close() }()
			if _, err := a.collection(cmd, args[0]); err != nil {
				return err
			}
			if (len(args) == 2) == (len(where) > 0) {
				return printer.Error(cmd.ErrOrStderr(), "Ambiguous removal", "Pass exactly one of an ID or --where.")
			}
			if err := a.openEngine(cmd); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) == 2 {
				ok, err := a.engine.Remove(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if !ok {
					printer.Warning(out, "%s not found\n", args[1])
					return nil
				}
				printer.Success(out, "removed %s\n", args[1])
				return nil
			}
			filter, err := parseWhere(where)
			if err != nil {
				return err
			}
			n, err := a.engine.RemoveWhere(cmd.Context(), args[0], filter)
			if err != nil {
				return err
			}
			printer.Success(out, "removed %d documents\n", n)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&where, "where", nil, "path=value condition; value is parsed as JSON when possible (repeatable, ANDed)")
	return cmd
}

func parseWhere(conds []string) (core.Filter, error) {
	filters := make([]core.Filter, 0, len(conds))
	for _, cond := range conds {
		path, raw, ok := strings.Cut(cond, "=")
		if !ok || path == "" {
			return nil, fmt.Errorf("invalid --where %q: want path=value", cond)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		filters = append(filters, core.FieldEquals(path, value))
	}
	return func(doc *domain.Document) bool {
		for _, f := range filters {
			if !f(doc) {
				return false
			}
		}
		return true
	}, nil
}

func printDocument(w io.Writer, doc *domain.Document) error {
	b, err := json.MarshalIndent(doc.Record, "", "  ")
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "%s\n\nstate: %s\n", b, printer.State(doc.State))
	if doc.Reason != "" {
		_, _ = fmt.Fprintf(w, "reason: %s\n", doc.Reason)
	}
	if doc.Staged != nil {
		staged, err := json.MarshalIndent(doc.Staged.Payload, "", "  ")
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(w, "staged v%d -> v%d:\n%s\n", doc.Staged.FromVersion, doc.Staged.ToVersion, staged)
	}
	return nil
}
