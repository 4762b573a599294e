package main

import (
	"fmt"
	"io"

	"github.com/go-faster/jx"
	"github.com/spf13/cobra"

	"github.com/sarchlab/membridge/analysis"
	"github.com/sarchlab/membridge/datarecording"
)

type inspectOptions struct {
	slowest int
	indent  bool
}

func newInspectCommand() *cobra.Command {
	opts := &inspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect RECORDING",
		Short: "Summarize a recording written by run --record.",
		Long: `Summarize a recording written by run --record. The summary ` +
			`lists how the run was started, the requests each bridge ` +
			`completed and rejected, their latencies, the bridge state at ` +
			`finalization, and the slowest requests.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspect(cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.slowest, "slowest", "n", 5,
		"Number of slowest requests to list.")
	f.BoolVar(&opts.indent, "indent", false, "Indent the JSON summary.")

	return cmd
}

func inspect(cmd *cobra.Command, path string, opts *inspectOptions) error {
	r, err := datarecording.NewReader(path)
	if err != nil {
		return fmt.Errorf("cannot open recording: %w", err)
	}
	defer r.Close()

	ctx := cmd.Context()

	exec, _, err := datarecording.Rows[datarecording.ExecEntry](
		ctx, r, datarecording.ExecTable, datarecording.Filter{})
	if err != nil {
		return err
	}

	bridges, err := r.Summarize(ctx)
	if err != nil {
		return err
	}

	slowest, _, err := datarecording.Rows[datarecording.RequestEntry](
		ctx, r, datarecording.RequestTable, datarecording.Filter{
			OrderBy: "Latency DESC, Arrive",
			Limit:   opts.slowest,
		})
	if err != nil {
		return err
	}

	perf, err := r.Count(ctx, analysis.PerfTable, datarecording.Filter{})
	if err != nil {
		return err
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	if opts.indent {
		e.SetIdent(2)
	}

	e.Obj(func(e *jx.Encoder) {
		e.Field("recording", func(e *jx.Encoder) { e.Str(path) })
		e.Field("exec", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, p := range exec {
					e.Field(p.Property, func(e *jx.Encoder) { e.Str(p.Value) })
				}
			})
		})
		e.Field("bridges", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, b := range bridges {
					encodeBridgeSummary(e, b)
				}
			})
		})
		e.Field("slowest", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, req := range slowest {
					encodeRequestEntry(e, req)
				}
			})
		})
		e.Field("perf_entries", func(e *jx.Encoder) { e.Int(perf) })
	})

	out := cmd.OutOrStdout()
	if _, err := e.WriteTo(out); err != nil {
		return err
	}

	_, err = io.WriteString(out, "\n")

	return err
}

func encodeBridgeSummary(e *jx.Encoder, b datarecording.BridgeSummary) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("name", func(e *jx.Encoder) { e.Str(b.Bridge) })
		e.Field("completed", func(e *jx.Encoder) { e.Int(b.Completed) })
		e.Field("rejected", func(e *jx.Encoder) { e.Int(b.Rejected) })
		e.Field("avg_latency", func(e *jx.Encoder) { e.Float64(b.AvgLatency) })
		e.Field("max_latency", func(e *jx.Encoder) { e.Int64(b.MaxLatency) })

		if b.Final == nil {
			return
		}

		e.Field("final", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				f := b.Final
				e.Field("cycle", func(e *jx.Encoder) { e.UInt64(f.Cycle) })
				e.Field("admitted", func(e *jx.Encoder) { e.UInt64(f.Admitted) })
				e.Field("completed", func(e *jx.Encoder) { e.UInt64(f.Completed) })
				e.Field("outstanding", func(e *jx.Encoder) { e.UInt64(f.Outstanding) })
			})
		})
	})
}

func encodeRequestEntry(e *jx.Encoder, r datarecording.RequestEntry) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(r.ID) })
		e.Field("bridge", func(e *jx.Encoder) { e.Str(r.Bridge) })
		e.Field("kind", func(e *jx.Encoder) { e.Str(r.Kind) })
		e.Field("addr", func(e *jx.Encoder) { e.Int64(r.Addr) })
		e.Field("latency", func(e *jx.Encoder) { e.Int64(r.Latency) })
	})
}
