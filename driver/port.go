package driver

import (
	"github.com/sarchlab/membridge/bridge"
	"github.com/sarchlab/membridge/mem"
	"github.com/sarchlab/membridge/workload"
)

// Response is the result of one request as a port sees it in the cycle the
// request completes. A port's responses are cleared at the start of every
// cycle.
type Response struct {
	Addr    int64
	IsWrite bool

	// Issued is the driver cycle in which the request was admitted.
	Issued uint64

	// Cycle is the driver cycle in which the request completed.
	Cycle uint64

	// Arrive and Depart are in the cycles of the bridge's memory clock.
	Arrive int64
	Depart int64
}

// Latency returns the number of driver cycles from admission to completion.
func (r Response) Latency() uint64 {
	return r.Cycle - r.Issued
}

// PortStats counts what a port did.
type PortStats struct {
	Name      string
	Issued    uint64
	Retries   uint64
	Completed uint64
	Reads     uint64
	Writes    uint64

	TotalLatency uint64
	MaxLatency   uint64
}

// AverageLatency returns the mean latency in driver cycles.
func (s PortStats) AverageLatency() float64 {
	if s.Completed == 0 {
		return 0
	}

	return float64(s.TotalLatency) / float64(s.Completed)
}

// A Port issues the accesses of one generator into one bridge.
type Port struct {
	id     int
	name   string
	driver *Driver
	bridge *bridge.Bridge
	gen    workload.Generator

	pending   *workload.Access
	responses []Response
	stamps    map[uint64]uint64
	nextSeq   uint64

	// OnResponse, if set, is called for every completed request.
	OnResponse func(p *Port, r Response)

	stats PortStats
}

// ID returns the index of the port in its driver.
func (p *Port) ID() int {
	return p.id
}

// Name returns the name of the port.
func (p *Port) Name() string {
	return p.name
}

// Bridge returns the bridge the port issues to.
func (p *Port) Bridge() *bridge.Bridge {
	return p.bridge
}

// Responses returns the requests that completed in the current cycle.
func (p *Port) Responses() []Response {
	return p.responses
}

// Stats returns the counters of the port.
func (p *Port) Stats() PortStats {
	return p.stats
}

// InFlight returns the number of requests admitted but not completed.
func (p *Port) InFlight() int {
	return len(p.stamps)
}

// Idle returns true if the port has nothing to issue now or later.
func (p *Port) Idle() bool {
	return p.pending == nil && p.gen.Done() && len(p.stamps) == 0
}

func (p *Port) resetLatch() {
	p.responses = p.responses[:0]
}

// issue tries to send the pending access, fetching a new one from the
// generator first if there is none. It returns true if a request was
// admitted.
func (p *Port) issue(cycle uint64) (bool, error) {
	if p.pending == nil {
		a, ok := p.gen.Next(cycle)
		if !ok {
			return false, nil
		}

		p.pending = &a
	}

	seq := p.nextSeq
	a := *p.pending

	admitted, err := p.bridge.SendRequest(a.Addr, a.IsWrite,
		bridge.NewCompletion(func(req mem.Request) {
			p.complete(seq, req)
		}))
	if err != nil {
		return false, err
	}

	if !admitted {
		p.stats.Retries++
		return false, nil
	}

	p.stamps[seq] = cycle
	p.nextSeq++
	p.pending = nil
	p.stats.Issued++

	return true, nil
}

func (p *Port) complete(seq uint64, req mem.Request) {
	issued, ok := p.stamps[seq]
	if !ok {
		panic("driver: completion for a request that was never stamped")
	}

	delete(p.stamps, seq)

	r := Response{
		Addr:    req.Addr,
		IsWrite: req.IsWrite(),
		Issued:  issued,
		Cycle:   p.driver.cycle,
		Arrive:  req.Arrive,
		Depart:  req.Depart,
	}
	p.responses = append(p.responses, r)
	p.record(r)

	if p.OnResponse != nil {
		p.OnResponse(p, r)
	}
}

func (p *Port) record(r Response) {
	p.stats.Completed++

	if r.IsWrite {
		p.stats.Writes++
	} else {
		p.stats.Reads++
	}

	latency := r.Latency()
	p.stats.TotalLatency += latency

	if latency > p.stats.MaxLatency {
		p.stats.MaxLatency = latency
	}
}
