// Package monitoring turns a running simulation into an HTTP server so that
// the frame store, the scripts and the ready queue can be inspected and the
// engine paused while scripts execute.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/sarchlab/osim/kernel"
	"github.com/sarchlab/osim/mem/framestore"
	"github.com/sarchlab/osim/monitoring/web"
	"github.com/sarchlab/osim/scheduling"
	"github.com/sarchlab/osim/timing"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

// A Component is anything the monitor can list and serialize by name.
type Component interface {
	Name() string
}

// Monitor can turn a simulation into a server and allows external monitoring
// controlling of the simulation.
type Monitor struct {
	engine     timing.Engine
	frames     *framestore.FrameStore
	registry   *kernel.Registry
	scheduler  *scheduling.Scheduler
	portNumber int

	componentsLock sync.Mutex
	components     []Component

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server *http.Server
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterEngine registers the engine that is used in the simulation.
func (m *Monitor) RegisterEngine(e timing.Engine) {
	m.engine = e
}

// RegisterFrameStore registers the frame store shown by /api/frames.
func (m *Monitor) RegisterFrameStore(frames *framestore.FrameStore) {
	m.frames = frames
	m.RegisterComponent(frames)
}

// RegisterRegistry registers the script registry shown by /api/scripts.
func (m *Monitor) RegisterRegistry(registry *kernel.Registry) {
	m.registry = registry
	m.RegisterComponent(registry)
}

// RegisterScheduler registers the scheduler shown by /api/ready_queue.
func (m *Monitor) RegisterScheduler(scheduler *scheduling.Scheduler) {
	m.scheduler = scheduler
	m.RegisterComponent(scheduler)
}

// RegisterComponent register a component to be monitored.
func (m *Monitor) RegisterComponent(c Component) {
	m.componentsLock.Lock()
	defer m.componentsLock.Unlock()

	for _, existing := range m.components {
		if existing.Name() == c.Name() {
			return
		}
	}

	m.components = append(m.components, c)
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
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

// Router returns the handler serving the monitoring API.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/list_components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/frames", m.listFrames)
	r.HandleFunc("/api/scripts", m.listScripts)
	r.HandleFunc("/api/ready_queue", m.listReadyQueue)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() string {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != nil && err != http.ErrServerClosed {
			log.Panic(err)
		}
	}()

	return url
}

// StopServer shuts the web server down.
func (m *Monitor) StopServer() error {
	if m.server == nil {
		return nil
	}

	return m.server.Close()
}

// OpenInBrowser opens the dashboard in the default browser.
func OpenInBrowser(url string) error {
	return browser.OpenURL(url)
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Pause()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Continue()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	now := m.engine.CurrentTime()
	fmt.Fprintf(w, "{\"now\":%d}", now)
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	m.componentsLock.Lock()
	defer m.componentsLock.Unlock()

	fmt.Fprint(w, "[")
	for i, c := range m.components {
		if i > 0 {
			fmt.Fprint(w, ",")
		}

		fmt.Fprintf(w, "\"%s\"", c.Name())
	}
	fmt.Fprint(w, "]")
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	component := m.findComponentOr404(w, name)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	jsonString := mux.Vars(r)["json"]
	req := fieldReq{}

	err := json.Unmarshal([]byte(jsonString), &req)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	component := m.findComponentOr404(w, req.CompName)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	err = serializer.Serialize(w)
	dieOnErr(err)
}

type frameRsp struct {
	Index    int      `json:"index"`
	Occupied bool     `json:"occupied"`
	LastUsed uint64   `json:"last_used"`
	Script   string   `json:"script,omitempty"`
	Page     int      `json:"page"`
	Lines    []string `json:"lines"`
}

func (m *Monitor) listFrames(w http.ResponseWriter, _ *http.Request) {
	if m.frames == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	frames := m.frames.Frames()
	rsp := make([]frameRsp, 0, len(frames))

	for _, f := range frames {
		fr := frameRsp{
			Index:    f.Index,
			Occupied: f.Occupied,
			LastUsed: f.LastUsed,
			Page:     -1,
			Lines:    []string{},
		}

		if f.Occupied {
			fr.Script = f.Owner.ScriptName
			fr.Page = f.Owner.Page
			fr.Lines = f.ValidLines()
		}

		rsp = append(rsp, fr)
	}

	m.writeJSON(w, rsp)
}

type scriptRsp struct {
	ID       uint64         `json:"id"`
	Name     string         `json:"name"`
	Location string         `json:"location"`
	Lines    int            `json:"lines"`
	Pages    int            `json:"pages"`
	Refs     int            `json:"refs"`
	Mapped   map[string]int `json:"mapped"`
}

func (m *Monitor) listScripts(w http.ResponseWriter, _ *http.Request) {
	if m.registry == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	scripts := m.registry.Scripts()
	rsp := make([]scriptRsp, 0, len(scripts))

	for _, s := range scripts {
		mapped := make(map[string]int)
		for page, frame := range s.PageTable().Mapped() {
			mapped[strconv.Itoa(page)] = frame
		}

		rsp = append(rsp, scriptRsp{
			ID:       uint64(s.ID()),
			Name:     s.Name(),
			Location: s.Location(),
			Lines:    s.NumLines(),
			Pages:    s.NumPages(),
			Refs:     s.RefCount(),
			Mapped:   mapped,
		})
	}

	m.writeJSON(w, rsp)
}

type readyQueueRsp struct {
	Active  bool     `json:"active"`
	Policy  string   `json:"policy,omitempty"`
	Running *uint64  `json:"running"`
	Ready   []uint64 `json:"ready"`
}

func (m *Monitor) listReadyQueue(w http.ResponseWriter, _ *http.Request) {
	if m.scheduler == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	snapshot := m.scheduler.Snapshot()
	rsp := readyQueueRsp{
		Active: snapshot.Active,
		Policy: snapshot.Policy,
		Ready:  make([]uint64, 0, len(snapshot.Ready)),
	}

	if snapshot.Running != nil {
		pid := uint64(*snapshot.Running)
		rsp.Running = &pid
	}

	for _, pid := range snapshot.Ready {
		rsp.Ready = append(rsp.Ready, uint64(pid))
	}

	m.writeJSON(w, rsp)
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) Component {
	m.componentsLock.Lock()
	defer m.componentsLock.Unlock()

	for _, c := range m.components {
		if c.Name() == name {
			return c
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Component not found"))
	dieOnErr(err)

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.writeJSON(w, m.progressBars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	m.writeJSON(w, rsp)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
