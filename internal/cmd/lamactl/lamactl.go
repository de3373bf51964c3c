// Package lamactl builds the catalog administration command tree.
package lamactl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"

	entrypoint "github.com/tellingsounds/lama/internal/platform/cmd"
	apperrors "github.com/tellingsounds/lama/internal/platform/errors"
	"github.com/tellingsounds/lama/internal/platform/logging"
	"github.com/tellingsounds/lama/internal/services/catalog/app"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/engine"
)

// IO bundles the streams commands read from and write to.
type IO struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdIO returns the process streams.
func StdIO() IO {
	return IO{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

type cli struct {
	cfg        app.Config
	jsonOutput bool
	io         IO
}

// NewRootCommand returns the lamactl command tree with flag defaults taken
// from LAMA_* variables.
func NewRootCommand(streams IO) (*cobra.Command, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	c := &cli{cfg: cfg, io: streams}

	root := &cobra.Command{
		Use:   "lamactl",
		Short: "Administer the LAMA clip catalog",
		Long: `lamactl runs catalog commands and maintains the event log and its projection.

Every change is recorded as an event; the projection can be rebuilt from the
log at any time and checked against a fresh replay.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(streams.In)
	root.SetOut(streams.Out)
	root.SetErr(streams.Err)

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfg.EventsDBPath, "events-db-path", cfg.EventsDBPath, "path to the event log database")
	flags.StringVar(&c.cfg.ProjectionsDBPath, "projections-db-path", cfg.ProjectionsDBPath, "path to the projection database")
	flags.StringVar(&c.cfg.SearchRedisAddr, "search-redis-addr", cfg.SearchRedisAddr, "redis address for the shared search cache (empty keeps it in process)")
	flags.StringVar(&c.cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	flags.BoolVar(&c.jsonOutput, "json", false, "print results as JSON")

	root.AddCommand(
		c.processCommand(),
		c.getCommand(),
		c.searchCommand(),
		c.rebuildCommand(),
		c.verifyCommand(),
		c.exportEventsCommand(),
		c.importEventsCommand(),
		c.exportSnapshotCommand(),
		c.importSnapshotCommand(),
		c.resyncRelationsCommand(),
	)
	return root, nil
}

// Execute runs lamactl with args. With --json, a failure is also written to
// stdout as an error object.
func Execute(ctx context.Context, args []string, streams IO) error {
	root, err := NewRootCommand(streams)
	if err != nil {
		return err
	}
	root.SetArgs(args)
	err = root.ExecuteContext(ctx)
	if err != nil {
		if asJSON, _ := root.PersistentFlags().GetBool("json"); asJSON {
			_ = writeJSON(streams.Out, newErrorOutput(err))
		}
	}
	return err
}

type errorOutput struct {
	Code      string            `json:"code"`
	Status    string            `json:"status"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Retryable bool              `json:"retryable"`
}

// newErrorOutput describes err the way a gRPC client would see it, plus
// whether resubmitting the command is safe.
func newErrorOutput(err error) errorOutput {
	out := errorOutput{
		Code:      string(apperrors.CodeInternal),
		Message:   err.Error(),
		Retryable: engine.Retryable(err),
	}
	st, _ := status.FromError(apperrors.ToGRPCStatus(err))
	out.Status = st.Code().String()
	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok {
			out.Code = info.GetReason()
			out.Metadata = info.GetMetadata()
		}
	}
	return out
}

// FormatError renders err for the terminal, prefixed with its code when
// it carries one.
func FormatError(err error) string {
	if code := apperrors.GetCode(err); code != apperrors.CodeUnknown {
		return fmt.Sprintf("Error [%s]: %v", code, err)
	}
	return fmt.Sprintf("Error: %v", err)
}

// withRuntime opens the catalog, runs fn under the configured timeout and
// tracing, and closes the catalog again.
func (c *cli) withRuntime(ctx context.Context, fn func(context.Context, *app.Runtime) error) error {
	logger, err := logging.New(c.io.Err, c.cfg.LogLevel, c.cfg.LogFormat)
	if err != nil {
		return err
	}
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	options := entrypoint.RunOptions{Logger: logger}
	return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServiceLamactl, options, func(ctx context.Context) error {
		rt, err := app.Open(ctx, c.cfg, app.Options{Logger: logger})
		if err != nil {
			return err
		}
		defer rt.Close()
		return fn(ctx, rt)
	})
}

// print writes value as indented JSON when --json is set, text otherwise.
func (c *cli) print(value any, text string, args ...any) error {
	if c.jsonOutput {
		return writeJSON(c.io.Out, value)
	}
	_, err := fmt.Fprintf(c.io.Out, text+"\n", args...)
	return err
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(value)
}

// openInput opens path for reading; "-" or "" is the command's stdin.
func (c *cli) openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(c.io.In), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}

// writeOutput runs write against path, or stdout when path is "" or "-".
// A file is only kept when write succeeds.
func (c *cli) writeOutput(path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(c.io.Out)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

// status writes a progress line to stderr.
func (c *cli) status(format string, args ...any) {
	fmt.Fprintf(c.io.Err, format+"\n", args...)
}
