// Package monitoring turns a running simulation into a web server that can
// be inspected and paused from outside.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"reflect"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"
	"github.com/syifan/goseth"

	"github.com/sarchlab/membridge/bridge"
	"github.com/sarchlab/membridge/sim"
)

// A Component is anything with a name that the monitor can show.
type Component interface {
	Name() string
}

type bufferOwner interface {
	Buffers() []sim.Buffer
}

type cycleTeller interface {
	CurrentCycle() uint64
}

// Monitor serves the state of bridges over HTTP. The simulation must hold
// the monitor while it runs a cycle (see driver.Builder.WithLocker), so that
// requests are answered between cycles.
type Monitor struct {
	simLock   sync.Mutex
	pauseLock sync.Mutex
	paused    bool

	clock      cycleTeller
	bridges    []*bridge.Bridge
	components []Component
	buffers    []sim.Buffer

	portNumber  int
	openBrowser bool
	log         logrus.FieldLogger
	listener    net.Listener

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{log: logrus.WithField("comp", "monitor")}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		m.log.WithField("port", portNumber).
			Warn("port not allowed for monitoring, using a random port")

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes the monitor open its address in a browser when the
// server starts.
func (m *Monitor) WithBrowser() *Monitor {
	m.openBrowser = true
	return m
}

// Lock is called by the simulation before it runs a cycle.
func (m *Monitor) Lock() {
	m.simLock.Lock()
}

// Unlock is called by the simulation after it runs a cycle.
func (m *Monitor) Unlock() {
	m.simLock.Unlock()
}

// RegisterClock sets what tells the current cycle, usually the driver.
func (m *Monitor) RegisterClock(c cycleTeller) {
	m.clock = c
}

// RegisterBridge registers a bridge, its frontend, and its memory system.
// The bridge must be initialized.
func (m *Monitor) RegisterBridge(b *bridge.Bridge) {
	m.bridges = append(m.bridges, b)
	m.RegisterComponent(b)

	if fe, ok := b.Frontend().(Component); ok {
		m.RegisterComponent(fe)
	}

	if ms, ok := b.MemorySystem().(Component); ok {
		m.RegisterComponent(ms)
	}
}

// RegisterComponent registers a component and the buffers it owns.
func (m *Monitor) RegisterComponent(c Component) {
	m.components = append(m.components, c)

	if owner, ok := c.(bufferOwner); ok {
		m.buffers = append(m.buffers, owner.Buffers()...)
		return
	}

	m.registerFieldBuffers(c)
}

func (m *Monitor) registerFieldBuffers(c any) {
	v := reflect.ValueOf(c)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return
	}

	v = v.Elem()
	bufferType := reflect.TypeOf((*sim.Buffer)(nil)).Elem()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if field.Type() != bufferType || field.IsNil() {
			continue
		}

		fieldRef := reflect.NewAt(
			field.Type(),
			unsafe.Pointer(field.UnsafeAddr()),
		).Elem().Interface().(sim.Buffer)
		m.buffers = append(m.buffers, fieldRef)
	}
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        sim.GetIDGenerator().Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar from the list.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the handler of all monitoring endpoints.
func (m *Monitor) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pause)
	r.HandleFunc("/api/continue", m.continueSim)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/stats", m.stats)
	r.HandleFunc("/api/list_components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/hangdetector/buffers", m.hangDetectorBuffers)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	return r
}

// StartServer starts serving in the background and returns the address.
func (m *Monitor) StartServer() (string, error) {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", err
	}

	m.listener = listener

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	m.log.WithField("url", url).Info("monitoring simulation")

	go func() {
		err := http.Serve(listener, m.Router())
		if err != nil && !errors.Is(err, net.ErrClosed) {
			m.log.WithError(err).Error("monitor stopped")
		}
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			m.log.WithError(err).Warn("cannot open browser")
		}
	}

	return url, nil
}

// StopServer closes the listener of the server. A paused simulation is
// resumed.
func (m *Monitor) StopServer() error {
	m.resume()

	if m.listener == nil {
		return nil
	}

	return m.listener.Close()
}

// inspect runs f while the simulation is between cycles.
func (m *Monitor) inspect(f func()) {
	m.pauseLock.Lock()
	defer m.pauseLock.Unlock()

	if !m.paused {
		m.simLock.Lock()
		defer m.simLock.Unlock()
	}

	f()
}

func (m *Monitor) pause(w http.ResponseWriter, _ *http.Request) {
	m.pauseLock.Lock()
	defer m.pauseLock.Unlock()

	if !m.paused {
		m.simLock.Lock()
		m.paused = true
	}

	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueSim(w http.ResponseWriter, _ *http.Request) {
	m.resume()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) resume() {
	m.pauseLock.Lock()
	defer m.pauseLock.Unlock()

	if m.paused {
		m.paused = false
		m.simLock.Unlock()
	}
}

type nowRsp struct {
	Cycle  uint64 `json:"cycle"`
	Paused bool   `json:"paused"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	rsp := nowRsp{}

	m.inspect(func() {
		rsp.Paused = m.paused

		if m.clock != nil {
			rsp.Cycle = m.clock.CurrentCycle()
		}
	})

	writeJSON(w, rsp)
}

type bridgeStatsRsp struct {
	Name        string             `json:"name"`
	Cycle       uint64             `json:"cycle"`
	Admitted    uint64             `json:"admitted"`
	Rejected    uint64             `json:"rejected"`
	Completed   uint64             `json:"completed"`
	Outstanding uint64             `json:"outstanding"`
	Engine      map[string]float64 `json:"engine,omitempty"`
}

func (m *Monitor) stats(w http.ResponseWriter, _ *http.Request) {
	var rsp []bridgeStatsRsp

	m.inspect(func() {
		for _, b := range m.bridges {
			s := b.Stats()
			entry := bridgeStatsRsp{
				Name:        b.Name(),
				Cycle:       b.CurrentCycle(),
				Admitted:    s.Admitted,
				Rejected:    s.Rejected,
				Completed:   s.Completed,
				Outstanding: s.Outstanding,
				Engine:      engineStats(b),
			}
			rsp = append(rsp, entry)
		}
	})

	writeJSON(w, rsp)
}

func engineStats(b *bridge.Bridge) map[string]float64 {
	stats := make(map[string]float64)

	for _, half := range []any{b.Frontend(), b.MemorySystem()} {
		if r, ok := half.(bridge.StatsReporter); ok {
			for k, v := range r.Stats() {
				stats[k] = v
			}
		}
	}

	return stats
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(m.components))
	for _, c := range m.components {
		names = append(names, c.Name())
	}

	writeJSON(w, names)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	component := m.findComponentOr404(w, name)
	if component == nil {
		return
	}

	m.inspect(func() {
		serializer := goseth.NewSerializer()
		serializer.SetRoot(component)
		serializer.SetMaxDepth(1)
		dieOnErr(serializer.Serialize(w))
	})
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	component := m.findComponentOr404(w, req.CompName)
	if component == nil {
		return
	}

	m.inspect(func() {
		serializer := goseth.NewSerializer()
		serializer.SetRoot(component)
		serializer.SetMaxDepth(1)

		err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		dieOnErr(serializer.Serialize(w))
	})
}

type bufferRsp struct {
	Buffer string `json:"buffer"`
	Level  int    `json:"level"`
	Cap    int    `json:"cap"`
}

func (m *Monitor) hangDetectorBuffers(w http.ResponseWriter, r *http.Request) {
	sortMethod, limit, offset, err := buffersParseParams(r)
	if err != nil {
		http.Error(w, "Error: "+err.Error(), http.StatusBadRequest)
		return
	}

	var rsp []bufferRsp

	m.inspect(func() {
		for _, b := range m.sortAndSelectBuffers(sortMethod, limit, offset) {
			rsp = append(rsp, bufferRsp{
				Buffer: b.Name(),
				Level:  b.Size(),
				Cap:    b.Capacity(),
			})
		}
	})

	writeJSON(w, rsp)
}

func buffersParseParams(
	r *http.Request,
) (sortMethod string, limit, offset int, err error) {
	sortMethod = r.URL.Query().Get("sort")
	if sortMethod == "" {
		sortMethod = "percent"
	}

	if sortMethod != "level" && sortMethod != "percent" {
		return "", 0, 0, fmt.Errorf(
			"invalid sort method: %s, allowed values are `level` and `percent`",
			sortMethod)
	}

	limit, err = intParam(r, "limit")
	if err != nil {
		return "", 0, 0, err
	}

	offset, err = intParam(r, "offset")
	if err != nil {
		return "", 0, 0, err
	}

	return sortMethod, limit, offset, nil
}

func intParam(r *http.Request, name string) (int, error) {
	str := r.URL.Query().Get(name)
	if str == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(str)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %s", name, str)
	}

	return n, nil
}

func bufferPercent(b sim.Buffer) float64 {
	return float64(b.Size()) / float64(b.Capacity())
}

func (m *Monitor) sortAndSelectBuffers(
	sortMethod string,
	limit, offset int,
) []sim.Buffer {
	sorted := make([]sim.Buffer, len(m.buffers))
	copy(sorted, m.buffers)

	byLevel := func(i, j int) (bool, bool) {
		si, sj := sorted[i].Size(), sorted[j].Size()
		return si > sj, si != sj
	}

	byPercent := func(i, j int) (bool, bool) {
		pi, pj := bufferPercent(sorted[i]), bufferPercent(sorted[j])
		return pi > pj, pi != pj
	}

	first, second := byPercent, byLevel
	if sortMethod == "level" {
		first, second = byLevel, byPercent
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		if less, decided := first(i, j); decided {
			return less
		}

		less, _ := second(i, j)

		return less
	})

	if offset > len(sorted) {
		offset = len(sorted)
	}

	end := len(sorted)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	return sorted[offset:end]
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) Component {
	for _, c := range m.components {
		if c.Name() == name {
			return c
		}
	}

	http.Error(w, "Component not found", http.StatusNotFound)

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	bars := make([]ProgressBarSnapshot, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.Snapshot())
	}

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	p, err := process.NewProcess(int32(os.Getpid()))
	dieOnErr(err)

	cpuPercent, err := p.CPUPercent()
	dieOnErr(err)

	memorySize, err := p.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	dieOnErr(json.NewEncoder(w).Encode(v))
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
