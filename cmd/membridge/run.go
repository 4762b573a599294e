package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/membridge/analysis"
	"github.com/sarchlab/membridge/bridge"
	"github.com/sarchlab/membridge/config"
	"github.com/sarchlab/membridge/datarecording"
	"github.com/sarchlab/membridge/driver"
	"github.com/sarchlab/membridge/monitoring"
	"github.com/sarchlab/membridge/sim"
	"github.com/sarchlab/membridge/sim/hooking"
	"github.com/sarchlab/membridge/workload"
)

// Workload kinds.
const (
	workloadAlternating = "alternating"
	workloadTrace       = "trace"
	workloadLua         = "lua"
)

type runOptions struct {
	workload string
	trace    string
	script   string
	count    uint64
	stride   int64
	interval uint64

	maxCycles uint64
	idle      uint64
	freqGHz   float64

	record      string
	clickhouse  string
	chDatabase  string
	monitor     bool
	monitorPort int
	openBrowser bool

	output string
	indent bool
}

func (o *runOptions) addFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.workload, "workload", "w", workloadAlternating,
		"Workload kind: alternating, trace, or lua.")
	f.StringVar(&o.trace, "trace", "", "Trace file of the trace workload.")
	f.StringVar(&o.script, "script", "", "Script of the lua workload.")
	f.Uint64Var(&o.count, "count", 1000,
		"Number of accesses of the alternating workload.")
	f.Int64Var(&o.stride, "stride", 64,
		"Address stride of the alternating workload.")
	f.Uint64Var(&o.interval, "interval", 1,
		"Cycles between accesses of the alternating workload.")
	f.Uint64Var(&o.maxCycles, "max-cycles", 100000,
		"Stop after this many cycles. 0 means no limit.")
	f.Uint64Var(&o.idle, "idle", 100,
		"Stop after this many idle cycles. 0 disables the check.")
	f.Float64Var(&o.freqGHz, "freq", 0,
		"Driver clock in GHz. 0 ticks every engine once per driver cycle.")
	f.StringVar(&o.record, "record", "",
		"Record requests into <record>.sqlite3.")
	f.StringVar(&o.clickhouse, "clickhouse", "",
		"Record requests into the ClickHouse server at host:port. "+
			"Credentials come from MEMBRIDGE_CLICKHOUSE_USER and "+
			"MEMBRIDGE_CLICKHOUSE_PASSWORD.")
	f.StringVar(&o.chDatabase, "clickhouse-db", "default",
		"Database used with --clickhouse.")
	f.BoolVar(&o.monitor, "monitor", false, "Serve the monitoring API.")
	f.IntVar(&o.monitorPort, "monitor-port", 0,
		"Port of the monitoring API. 0 picks a free port.")
	f.BoolVar(&o.openBrowser, "open-browser", false,
		"Open the monitoring API in a browser.")
	f.StringVarP(&o.output, "output", "o", "-",
		"File to write the JSON report to. - means stdout.")
	f.BoolVar(&o.indent, "indent", false, "Indent the JSON report.")
}

func newRunCommand(g *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one workload against one engine.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			res, err := simulate(ctx, 0, g.config, opts)
			if err != nil {
				return err
			}

			return writeOutput(cmd, opts, []result{res})
		},
	}

	opts.addFlags(cmd)

	return cmd
}

type result struct {
	Config  string
	Engine  string
	TCK     float64
	Summary driver.Summary
	Report  bridge.FinalizeReport

	AvgLatency float64
	MaxLatency uint64
	BusyCycles uint64
	Buffers    []bufferLevel
}

type bufferLevel struct {
	Name    string
	Average float64
	Max     int
}

type bufferOwner interface {
	Buffers() []sim.Buffer
}

func sourceOf(path string) config.Source {
	if path == "" {
		return config.Value{}
	}

	return config.File(path)
}

func (o *runOptions) generator() (workload.Generator, func(), error) {
	switch o.workload {
	case workloadAlternating:
		g := workload.NewAlternating(o.count)
		g.Stride = o.stride
		g.Interval = o.interval

		return g, func() {}, nil
	case workloadTrace:
		t, err := workload.LoadTrace(resolvePath(o.trace))
		if err != nil {
			return nil, nil, err
		}

		return t, func() {}, nil
	case workloadLua:
		l, err := workload.LoadLua(resolvePath(o.script))
		if err != nil {
			return nil, nil, err
		}

		return l, l.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown workload %q", o.workload)
	}
}

// simulate runs the workload against a bridge built from the configuration
// file. Index names the bridge and the recording.
func simulate(
	ctx context.Context,
	index int,
	configPath string,
	opts *runOptions,
) (res result, err error) {
	name := sim.BuildNameWithIndex("", "Bridge", index)
	log := logrus.WithField("run", index)

	gen, closeGen, err := opts.generator()
	if err != nil {
		return res, err
	}
	defer closeGen()

	var (
		hooks      []hooking.Hook
		perfLogger = analysis.Loggers{&analysis.MemoryLogger{}}
	)

	rec, err := opts.recorder(index)
	if err != nil {
		return res, err
	}

	if rec != nil {
		defer rec.Close()

		exec := datarecording.NewExecRecorder(rec)
		exec.Start()
		exec.Add("Config", configPath)
		exec.Add("Workload", opts.workload)
		defer exec.End()

		hooks = append(hooks, datarecording.NewRequestRecorder(rec))
		perfLogger = append(perfLogger, analysis.NewRecorderLogger(rec))
	}

	b := bridge.MakeBuilder().
		WithLogger(log).
		WithHooks(hooks...).
		Build(name)
	defer func() {
		_, _ = b.Finalize()
		if derr := b.Destroy(); derr != nil && err == nil {
			err = derr
		}
	}()

	latency := hooking.NewLatencyTracer(b, func(t hooking.TaskStart) bool {
		return t.Kind == bridge.TaskKindReqIn
	})
	busy := hooking.NewBusyCycleTracer(b, nil)
	b.AcceptHook(latency)
	b.AcceptHook(busy)

	if err = b.Initialize(sourceOf(configPath)); err != nil {
		return res, err
	}

	analyzers := attachBufferAnalyzers(b, perfLogger)

	d, cleanup, err := buildDriver(b, index, opts, log)
	if err != nil {
		return res, err
	}
	defer cleanup()

	if _, err = d.Attach(b, gen); err != nil {
		return res, err
	}

	res.Summary, err = d.Run(ctx)
	if err != nil {
		return res, err
	}

	if l, ok := gen.(*workload.Lua); ok && l.Err() != nil {
		return res, l.Err()
	}

	res.Buffers = summarizeBuffers(analyzers, perfLogger[0].(*analysis.MemoryLogger))

	res.Report, err = b.Finalize()
	if err != nil {
		return res, err
	}

	res.Config = configPath
	res.Engine = b.Config().Engine
	res.AvgLatency = latency.AverageCycles()
	res.MaxLatency = latency.MaxCycles()
	res.BusyCycles = busy.BusyCycles()
	res.TCK, err = b.TCK()

	return res, err
}

// attachBufferAnalyzers tracks the occupancy of every queue the engine
// exposes, clocked by the bridge.
func attachBufferAnalyzers(
	b *bridge.Bridge,
	logger analysis.PerfLogger,
) []*analysis.BufferAnalyzer {
	var analyzers []*analysis.BufferAnalyzer

	for _, c := range []any{b.Frontend(), b.MemorySystem()} {
		owner, ok := c.(bufferOwner)
		if !ok {
			continue
		}

		for _, buf := range owner.Buffers() {
			a := analysis.MakeBufferAnalyzerBuilder().
				WithPerfLogger(logger).
				WithCycleTeller(b).
				WithBuffer(buf).
				Build()
			analyzers = append(analyzers, a)
		}
	}

	return analyzers
}

func summarizeBuffers(
	analyzers []*analysis.BufferAnalyzer,
	logger *analysis.MemoryLogger,
) []bufferLevel {
	for _, a := range analyzers {
		a.Summarize()
	}

	avg := make(map[string]float64)
	for _, e := range logger.Entries() {
		avg[e.Location] = e.Value
	}

	levels := make([]bufferLevel, 0, len(analyzers))
	for _, a := range analyzers {
		levels = append(levels, bufferLevel{
			Name:    a.Name(),
			Average: avg[a.Name()],
			Max:     a.MaxLevel(),
		})
	}

	return levels
}

// recorder opens the recording backend selected by the flags. It returns
// nil if nothing is recorded.
func (o *runOptions) recorder(index int) (datarecording.DataRecorder, error) {
	switch {
	case o.record != "" && o.clickhouse != "":
		return nil, fmt.Errorf("--record and --clickhouse cannot be combined")
	case o.record != "":
		return datarecording.New(fmt.Sprintf("%s_%d", o.record, index)), nil
	case o.clickhouse != "":
		w, err := datarecording.NewClickHouseWriter(datarecording.ClickHouseOptions{
			Addr:     o.clickhouse,
			Database: o.chDatabase,
			Username: os.Getenv("MEMBRIDGE_CLICKHOUSE_USER"),
			Password: os.Getenv("MEMBRIDGE_CLICKHOUSE_PASSWORD"),
		})
		if err != nil {
			return nil, err
		}

		return w, nil
	default:
		return nil, nil
	}
}

func buildDriver(
	b *bridge.Bridge,
	index int,
	opts *runOptions,
	log logrus.FieldLogger,
) (*driver.Driver, func(), error) {
	builder := driver.MakeBuilder().
		WithLogger(log).
		WithMaxCycles(opts.maxCycles).
		WithIdleThreshold(opts.idle)

	if opts.freqGHz > 0 {
		builder = builder.WithFreq(sim.Freq(opts.freqGHz) * sim.GHz)
	}

	name := sim.BuildNameWithIndex("", "Driver", index)

	if !opts.monitor {
		return builder.Build(name), func() {}, nil
	}

	m := monitoring.NewMonitor().WithPortNumber(opts.monitorPort)
	if opts.openBrowser {
		m = m.WithBrowser()
	}

	bar := m.CreateProgressBar(name, opts.maxCycles)
	d := builder.WithLocker(m).WithHooks(bar).Build(name)

	m.RegisterClock(d)
	m.RegisterBridge(b)

	if _, err := m.StartServer(); err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		m.CompleteProgressBar(bar)

		if err := m.StopServer(); err != nil {
			log.WithError(err).Warn("cannot stop monitor")
		}
	}

	return d, cleanup, nil
}

func writeOutput(cmd *cobra.Command, opts *runOptions, results []result) error {
	if opts.output == "-" || opts.output == "" {
		return writeReport(cmd.OutOrStdout(), results, opts.indent)
	}

	f, err := os.Create(opts.output)
	if err != nil {
		return err
	}

	if err := writeReport(f, results, opts.indent); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
