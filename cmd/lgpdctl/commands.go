package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/fonoapp/internal/lib/sl"
)

type runner struct {
	out     io.Writer
	connect Connector
	verbose bool
	now     func() time.Time
}

func newRootCmd(out io.Writer, connect Connector) *cobra.Command {
	r := &runner{out: out, connect: connect, now: time.Now}
	return r.rootCmd()
}

func (r *runner) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lgpdctl",
		Short:         "LGPD administration for fonoapp",
		Long:          "lgpdctl runs retention policies and answers data subject requests on behalf of an operator.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(r.out)
	root.PersistentFlags().BoolVar(&r.verbose, "verbose", false, "Write service logs to stderr")

	root.AddCommand(r.retentionCmd(), r.exportCmd(), r.deleteCmd())
	return root
}

func (r *runner) logger() *slog.Logger {
	w := io.Discard
	if r.verbose {
		w = os.Stderr
	}
	return sl.SetupLogger(sl.EnvLocal, w)
}

func (r *runner) withBackend(ctx context.Context, fn func(b *Backend) error) error {
	b, err := r.connect(ctx, r.logger())
	if err != nil {
		return codeError(2, "connect: %s", err)
	}
	if b.Close != nil {
		defer b.Close()
	}
	return fn(b)
}

func (r *runner) retentionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retention",
		Short: "Inspect and apply data retention policies",
	}

	policiesCmd := &cobra.Command{
		Use:   "policies",
		Short: "List retention policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withBackend(cmd.Context(), func(b *Backend) error {
				tw := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CATEGORY\tDAYS\tACTION\tLEGAL BASIS")
				for _, p := range b.Retention.Policies() {
					fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", p.DataCategory, p.RetentionDays, p.Action, p.LegalBasis)
				}
				return tw.Flush()
			})
		},
	}

	var dryRun bool
	applyCmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply all retention policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withBackend(cmd.Context(), func(b *Backend) error {
				summary, err := b.Retention.Apply(cmd.Context(), r.now(), dryRun)
				if summary != nil {
					tw := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "CATEGORY\tACTION\tCUTOFF\tRECORDS\tSTATUS")
					for _, res := range summary.Results {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", res.Policy.DataCategory, res.Policy.Action,
							res.Cutoff.Format(time.DateOnly), res.Records, res.Status)
					}
					if flushErr := tw.Flush(); flushErr != nil {
						return flushErr
					}
				}
				if err != nil {
					return codeError(3, "retention: %s", err)
				}
				return nil
			})
		},
	}
	applyCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only count the records that would be processed")

	var limit int
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the latest retention runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withBackend(cmd.Context(), func(b *Backend) error {
				items, err := b.Retention.Logs(cmd.Context(), limit)
				if err != nil {
					return codeError(3, "retention logs: %s", err)
				}
				tw := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "EXECUTED AT\tCATEGORY\tACTION\tRECORDS\tSTATUS\tERROR")
				for _, l := range items {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", l.ExecutedAt.Format(time.RFC3339), l.DataCategory,
						l.Action, l.RecordsAffected, l.Status, l.ErrorMessage)
				}
				return tw.Flush()
			})
		},
	}
	logsCmd.Flags().IntVar(&limit, "limit", 20, "Number of entries to show")

	cmd.AddCommand(policiesCmd, applyCmd, logsCmd)
	return cmd
}

func (r *runner) exportCmd() *cobra.Command {
	var userUID, format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all data of a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withBackend(cmd.Context(), func(b *Backend) error {
				doc, err := b.Privacy.Export(cmd.Context(), userUID, format)
				if err != nil {
					return codeError(3, "export: %s", err)
				}
				if out == "" {
					_, err = r.out.Write(doc.Body)
					return err
				}
				if err := os.WriteFile(out, doc.Body, 0o600); err != nil {
					return codeError(1, "write %s: %s", out, err)
				}
				return json.NewEncoder(r.out).Encode(map[string]any{
					"file":   out,
					"format": doc.Format,
					"bytes":  len(doc.Body),
				})
			})
		},
	}
	cmd.Flags().StringVar(&userUID, "user", "", "User UID")
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or csv")
	cmd.Flags().StringVar(&out, "out", "", "Write the export to file instead of stdout")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (r *runner) deleteCmd() *cobra.Command {
	var userUID string
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete all data of a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return codeError(1, "refusing to delete user %s without --yes", userUID)
			}
			return r.withBackend(cmd.Context(), func(b *Backend) error {
				if err := b.Privacy.Delete(cmd.Context(), userUID); err != nil {
					return codeError(3, "delete: %s", err)
				}
				fmt.Fprintf(r.out, "user %s deleted\n", userUID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userUID, "user", "", "User UID")
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm irreversible deletion")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
