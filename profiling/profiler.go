// Package profiling captures CPU profiles and execution traces while the
// simulation runs, either on demand or when a step turns out slow.
package profiling

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"sync"
	"time"
)

var (
	// ErrCooldown is returned when a capture is requested too soon after the last one
	ErrCooldown = errors.New("capture on cooldown")

	// ErrBusy is returned while another capture is running
	ErrBusy = errors.New("already profiling")
)

// Profiler writes paired CPU profile and trace files into one directory
type Profiler struct {
	mu              sync.Mutex
	isProfiling     bool
	lastCaptureTime time.Time
	captureCooldown time.Duration
	profilesDir     string
	logger          *log.Logger
}

// NewProfiler creates a profiler writing into dir, creating it if needed
func NewProfiler(dir string) (*Profiler, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create profiles dir: %w", err)
	}
	return &Profiler{
		captureCooldown: 10 * time.Second,
		profilesDir:     dir,
		logger:          log.Default(),
	}, nil
}

// SetCooldown sets the minimum time between two background captures
func (p *Profiler) SetCooldown(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.captureCooldown = d
}

// SetLogger replaces the logger used for capture reports
func (p *Profiler) SetLogger(l *log.Logger) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger = l
}

// Dir returns the directory profiles are written to
func (p *Profiler) Dir() string { return p.profilesDir }

// IsProfiling returns whether a capture is currently in progress
func (p *Profiler) IsProfiling() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isProfiling
}

func (p *Profiler) baseName(reason string) string {
	return fmt.Sprintf("%s-%s", time.Now().Format("20060102-150405"), reason)
}

// Capture starts a background capture of duration. It returns ErrCooldown or
// ErrBusy without capturing when the previous capture is too recent or still
// running. done, when not nil, receives the capture result.
func (p *Profiler) Capture(reason string, duration time.Duration, done chan<- error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isProfiling {
		return ErrBusy
	}
	if !p.lastCaptureTime.IsZero() && time.Since(p.lastCaptureTime) < p.captureCooldown {
		return fmt.Errorf("%w (last capture was %v ago)", ErrCooldown, time.Since(p.lastCaptureTime).Round(time.Millisecond))
	}

	p.isProfiling = true
	p.lastCaptureTime = time.Now()
	baseName := p.baseName(reason)

	go func() {
		err := p.capture(baseName, duration)
		p.mu.Lock()
		p.isProfiling = false
		p.mu.Unlock()
		if done != nil {
			done <- err
		}
	}()
	return nil
}

// CaptureSync captures a CPU profile and a trace in parallel and blocks until
// both files are written. It ignores the cooldown.
func (p *Profiler) CaptureSync(reason string, duration time.Duration) error {
	p.mu.Lock()
	if p.isProfiling {
		p.mu.Unlock()
		return ErrBusy
	}
	p.isProfiling = true
	p.lastCaptureTime = time.Now()
	p.mu.Unlock()

	err := p.capture(p.baseName(reason), duration)

	p.mu.Lock()
	p.isProfiling = false
	p.mu.Unlock()
	return err
}

func (p *Profiler) capture(baseName string, duration time.Duration) error {
	var wg sync.WaitGroup
	var cpuErr, traceErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		cpuErr = p.captureCPUProfile(baseName, duration)
	}()
	go func() {
		defer wg.Done()
		traceErr = p.captureTrace(baseName, duration)
	}()
	wg.Wait()

	p.report(baseName)
	return errors.Join(cpuErr, traceErr)
}

func (p *Profiler) captureCPUProfile(baseName string, duration time.Duration) error {
	stop, err := StartCPUProfile(filepath.Join(p.profilesDir, baseName+".cpu.prof"))
	if err != nil {
		return err
	}
	time.Sleep(duration)
	return stop()
}

func (p *Profiler) captureTrace(baseName string, duration time.Duration) error {
	stop, err := StartTrace(filepath.Join(p.profilesDir, baseName+".trace"))
	if err != nil {
		return err
	}
	time.Sleep(duration)
	return stop()
}

// report logs where the capture went and the heap state at the end of it
func (p *Profiler) report(baseName string) {
	p.mu.Lock()
	logger := p.logger
	p.mu.Unlock()
	if logger == nil {
		return
	}

	profilePath := filepath.Join(p.profilesDir, baseName+".cpu.prof")
	info, err := os.Stat(profilePath)
	if err != nil {
		logger.Printf("profile %s not written: %v", baseName, err)
		return
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	logger.Printf("profile %s (%.2f KB), view with: go tool pprof -http=:8080 %s",
		baseName, float64(info.Size())/1024, profilePath)
	logger.Printf("memory at capture: alloc=%d KB total=%d KB sys=%d KB gc=%d objects=%d",
		m.Alloc/1024, m.TotalAlloc/1024, m.Sys/1024, m.NumGC, m.HeapObjects)
}

// StartCPUProfile starts a CPU profile written to path. The returned
// function stops the profile and closes the file.
func StartCPUProfile(path string) (stop func() error, err error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile file: %w", err)
	}
	if err := pprof.StartCPUProfile(file); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to start CPU profile: %w", err)
	}
	return func() error {
		pprof.StopCPUProfile()
		return file.Close()
	}, nil
}

// StartTrace starts an execution trace written to path. The returned
// function stops the trace and closes the file.
func StartTrace(path string) (stop func() error, err error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace file: %w", err)
	}
	if err := trace.Start(file); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to start trace: %w", err)
	}
	return func() error {
		trace.Stop()
		return file.Close()
	}, nil
}

// WriteHeapProfile writes the current heap profile to path
func WriteHeapProfile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create heap profile file: %w", err)
	}
	runtime.GC()
	if err := pprof.WriteHeapProfile(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to write heap profile: %w", err)
	}
	return file.Close()
}
