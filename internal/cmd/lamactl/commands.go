package lamactl

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apperrors "github.com/tellingsounds/lama/internal/platform/errors"
	"github.com/tellingsounds/lama/internal/services/catalog/app"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/command"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/engine"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/replay"
)

type processOutput struct {
	SubjectID string    `json:"subjectId"`
	EventID   int64     `json:"eventId"`
	EventType string    `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`
}

func newProcessOutput(result engine.Result) processOutput {
	return processOutput{
		SubjectID: result.SubjectID,
		EventID:   result.Event.ID,
		EventType: string(result.Event.Type),
		Timestamp: result.Event.Timestamp,
	}
}

type replayOutput struct {
	Applied         int       `json:"applied"`
	LastEventID     int64     `json:"lastEventId"`
	BaselineEventID int64     `json:"baselineEventId,omitempty"`
	BaselineAt      time.Time `json:"baselineAt,omitzero"`
}

func newReplayOutput(result replay.Result) replayOutput {
	return replayOutput{
		Applied:         result.Applied,
		LastEventID:     result.Last.ID,
		BaselineEventID: result.Baseline.ID,
		BaselineAt:      result.Baseline.Timestamp,
	}
}

func (c *cli) processCommand() *cobra.Command {
	var actor, payloadPath string
	cmd := &cobra.Command{
		Use:   "process <CommandType>",
		Short: "Process one catalog command",
		Long: `Process validates a command, records the resulting event and updates the projection.

The payload is a JSON object read from --payload, or from stdin when it is "-".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := c.openInput(payloadPath)
			if err != nil {
				return err
			}
			payload, err := io.ReadAll(in)
			_ = in.Close()
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}
			return c.withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				result, err := rt.ProcessCommand(ctx, command.Command{
					Type:    command.Type(args[0]),
					ActorID: actor,
					Payload: payload,
				})
				if err != nil {
					return err
				}
				return c.print(newProcessOutput(result), "%s %s (event %d)",
					result.Event.Type, result.SubjectID, result.Event.ID)
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "acting user id")
	cmd.Flags().StringVar(&payloadPath, "payload", "-", `payload file, or "-" for stdin`)
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func (c *cli) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print a projected document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				doc, err := rt.FindByID(ctx, args[0])
				if err != nil {
					return err
				}
				return writeJSON(c.io.Out, doc)
			})
		},
	}
}

func (c *cli) searchCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find entities by label",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return c.withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				entries, err := rt.SearchEntities(ctx, query, limit)
				if err != nil {
					return err
				}
				if c.jsonOutput {
					return writeJSON(c.io.Out, entries)
				}
				for _, e := range entries {
					if _, err := fmt.Fprintf(c.io.Out, "%s\t%s\t%d\n", e.ID, e.Label, e.UsageCount); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of entities")
	return cmd
}

func (c *cli) rebuildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the projection from the event log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				result, err := rt.Rebuild(ctx)
				if err != nil {
					return err
				}
				return c.print(newReplayOutput(result), "Replayed %d events", result.Applied)
			})
		},
	}
}

func (c *cli) verifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Compare the projection with a fresh replay of the log",
		Long: `Verify replays the event log into a scratch projection and compares it with the
live one. The live projection is not changed; run rebuild to repair it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				report, err := rt.Verify(ctx)
				if err != nil {
					return err
				}
				if c.jsonOutput {
					if err := writeJSON(c.io.Out, report); err != nil {
						return err
					}
				} else {
					fmt.Fprintf(c.io.Out, "Checked %d documents against %d events\n", report.Documents, report.Replayed.Applied)
					for _, m := range report.Mismatches {
						fmt.Fprintf(c.io.Out, "%s\t%s\n", m.Kind, m.ID)
					}
				}
				if !report.OK() {
					return fmt.Errorf("projection differs from replay in %d documents", len(report.Mismatches))
				}
				return nil
			})
		},
	}
}

func (c *cli) exportEventsCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export-events",
		Short: "Write the event log as XML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				var n int
				err := c.writeOutput(out, func(w io.Writer) error {
					var err error
					n, err = rt.ExportEvents(ctx, w)
					return err
				})
				if err != nil {
					return err
				}
				c.status("Exported %d events", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "-", `output file, or "-" for stdout`)
	return cmd
}

func (c *cli) importEventsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import-events <file>",
		Short: "Replace the event log and rebuild the projection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := c.openInput(args[0])
			if err != nil {
				return err
			}
			defer in.Close()
			return c.withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				result, err := rt.ImportEvents(ctx, in)
				if err != nil {
					return err
				}
				return c.print(newReplayOutput(result), "Imported and replayed %d events", result.Applied)
			})
		},
	}
}

func (c *cli) exportSnapshotCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export-snapshot",
		Short: "Write the projection as a JSON snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				var n int
				err := c.writeOutput(out, func(w io.Writer) error {
					var err error
					n, err = rt.ExportSnapshot(ctx, w)
					return err
				})
				if err != nil {
					return err
				}
				c.status("Exported %d documents", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "-", `output file, or "-" for stdout`)
	return cmd
}

func (c *cli) importSnapshotCommand() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "import-snapshot <file>",
		Short: "Replace the projection with a snapshot",
		Long: `Import-snapshot records a LoadSnapshot command, so the replacement is part of
the event log and survives rebuilds. It requires admin privilege.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := c.openInput(args[0])
			if err != nil {
				return err
			}
			defer in.Close()
			return c.withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				result, err := rt.ImportSnapshot(ctx, actor, in)
				if err != nil {
					return err
				}
				return c.print(newProcessOutput(result), "Loaded snapshot (event %d)", result.Event.ID)
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "acting admin id")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func (c *cli) resyncRelationsCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "resync-relations",
		Short: "Rebuild entity relations from the log as N-Triples",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if out == "" {
				return apperrors.Validation("--out is required")
			}
			return c.withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				var n int
				err := c.writeOutput(out, func(w io.Writer) error {
					var err error
					n, err = rt.ResyncRelations(ctx, w)
					return err
				})
				if err != nil {
					return err
				}
				c.status("Wrote %d relations", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", `output file, or "-" for stdout`)
	return cmd
}
