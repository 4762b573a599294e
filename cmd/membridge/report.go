package main

import (
	"io"
	"sort"

	"github.com/go-faster/jx"

	"github.com/sarchlab/membridge/driver"
)

// writeReport writes the results as a JSON array.
func writeReport(w io.Writer, results []result, indent bool) error {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	if indent {
		e.SetIdent(2)
	}

	e.Arr(func(e *jx.Encoder) {
		for _, r := range results {
			encodeResult(e, r)
		}
	})

	if _, err := e.WriteTo(w); err != nil {
		return err
	}

	_, err := io.WriteString(w, "\n")

	return err
}

func encodeResult(e *jx.Encoder, r result) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("config", func(e *jx.Encoder) { e.Str(r.Config) })
		e.Field("engine", func(e *jx.Encoder) { e.Str(r.Engine) })
		e.Field("tck_ns", func(e *jx.Encoder) { e.Float64(r.TCK) })
		e.Field("cycles", func(e *jx.Encoder) { e.UInt64(r.Summary.Cycles) })
		e.Field("stop", func(e *jx.Encoder) { e.Str(r.Summary.Reason.String()) })
		e.Field("memory_cycles", func(e *jx.Encoder) { e.UInt64(r.Report.Cycle) })
		e.Field("busy_cycles", func(e *jx.Encoder) { e.UInt64(r.BusyCycles) })
		e.Field("avg_latency", func(e *jx.Encoder) { e.Float64(r.AvgLatency) })
		e.Field("max_latency", func(e *jx.Encoder) { e.UInt64(r.MaxLatency) })

		s := r.Report.Stats
		e.Field("bridge", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("admitted", func(e *jx.Encoder) { e.UInt64(s.Admitted) })
				e.Field("rejected", func(e *jx.Encoder) { e.UInt64(s.Rejected) })
				e.Field("completed", func(e *jx.Encoder) { e.UInt64(s.Completed) })
				e.Field("outstanding", func(e *jx.Encoder) { e.UInt64(s.Outstanding) })
			})
		})

		e.Field("engine_stats", func(e *jx.Encoder) {
			encodeStats(e, r.Report.EngineStats)
		})

		e.Field("buffers", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range r.Buffers {
					encodeBuffer(e, l)
				}
			})
		})

		e.Field("ports", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, p := range r.Summary.Ports {
					encodePort(e, p)
				}
			})
		})
	})
}

func encodeStats(e *jx.Encoder, stats map[string]float64) {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	e.Obj(func(e *jx.Encoder) {
		for _, k := range keys {
			e.Field(k, func(e *jx.Encoder) { e.Float64(stats[k]) })
		}
	})
}

func encodePort(e *jx.Encoder, p driver.PortStats) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("issued", func(e *jx.Encoder) { e.UInt64(p.Issued) })
		e.Field("retries", func(e *jx.Encoder) { e.UInt64(p.Retries) })
		e.Field("completed", func(e *jx.Encoder) { e.UInt64(p.Completed) })
		e.Field("reads", func(e *jx.Encoder) { e.UInt64(p.Reads) })
		e.Field("writes", func(e *jx.Encoder) { e.UInt64(p.Writes) })
		e.Field("avg_latency", func(e *jx.Encoder) { e.Float64(p.AverageLatency()) })
		e.Field("max_latency", func(e *jx.Encoder) { e.UInt64(p.MaxLatency) })
	})
}

func encodeBuffer(e *jx.Encoder, l bufferLevel) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("name", func(e *jx.Encoder) { e.Str(l.Name) })
		e.Field("avg_level", func(e *jx.Encoder) { e.Float64(l.Average) })
		e.Field("max_level", func(e *jx.Encoder) { e.Int(l.Max) })
	})
}
