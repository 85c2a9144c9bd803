package wgman

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/wgman/internal/catalog"
	cfg "github.com/loykin/wgman/internal/config"
	"github.com/loykin/wgman/internal/detector"
	"github.com/loykin/wgman/internal/history"
	"github.com/loykin/wgman/internal/history/factory"
	"github.com/loykin/wgman/internal/metrics"
	"github.com/loykin/wgman/internal/selector"
	"github.com/loykin/wgman/internal/state"
	"github.com/loykin/wgman/internal/tunnel"
)

// Re-export the types callers need to inspect errors and configure a Manager.

type Config = cfg.FileConfig

type NoMatchError = catalog.NoMatchError

type CommandError = tunnel.CommandError

type RandSource = selector.Source

var ErrNoMatch = catalog.ErrNoMatch

// LoadConfig reads a TOML config file (optional) and WGMAN_* environment overrides.
func LoadConfig(path string) (Config, error) { return cfg.Load(path) }

// ConfigPathFromEnv returns the config file named by WGMAN_CONFIG, if any.
func ConfigPathFromEnv() string { return cfg.PathFromEnv() }

// CompilePattern compiles a configuration name filter; an empty expression matches everything.
func CompilePattern(expr string) (*regexp.Regexp, error) { return catalog.CompilePattern(expr) }

// Manager runs one rotate, list, down or status operation per call.
// It is not safe for concurrent use, and neither is the run file behind it.
type Manager struct {
	conf     Config
	out      io.Writer
	ctrl     *tunnel.Controller
	sel      *selector.Selector
	sink     history.Sink
	ownSink  bool
	registry prometheus.Gatherer
	ifaces   func(name string) detector.Detector
}

// Option customizes a Manager.
type Option func(*options)

type options struct {
	out    io.Writer
	runner tunnel.Runner
	src    selector.Source
	sink   history.Sink
}

// WithOutput redirects listings and simulated command lines (default os.Stdout).
func WithOutput(w io.Writer) Option { return func(o *options) { o.out = w } }

// WithRunner replaces the external command runner.
func WithRunner(r tunnel.Runner) Option { return func(o *options) { o.runner = r } }

// WithRandSource replaces the process-wide random generator used for selection.
func WithRandSource(src RandSource) Option { return func(o *options) { o.src = src } }

// WithHistory records transitions to sink instead of the one named by the config DSN.
func WithHistory(sink history.Sink) Option { return func(o *options) { o.sink = sink } }

// New validates conf and wires the components together.
func New(conf Config, opts ...Option) (*Manager, error) {
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	o := options{out: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Manager{
		conf: conf,
		out:  o.out,
		sel:  selector.New(o.src),
		ifaces: func(name string) detector.Detector {
			return detector.InterfaceDetector{Name: name}
		},
	}

	runner := o.runner
	if runner == nil {
		if conf.Mock {
			runner = tunnel.MockRunner{Tool: conf.Tool, Out: o.out}
		} else {
			runner = tunnel.ExecRunner{Tool: conf.Tool}
		}
	}

	m.sink = o.sink
	if m.sink == nil && strings.TrimSpace(conf.History.DSN) != "" {
		sink, err := factory.NewSinkFromDSN(conf.History.DSN)
		if err != nil {
			return nil, fmt.Errorf("open history sink: %w", err)
		}
		m.sink = sink
		m.ownSink = true
	}

	if conf.Metrics.Textfile != "" {
		if err := metrics.Register(metrics.Registry); err != nil {
			_ = m.closeSink()
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		m.registry = metrics.Registry
	}

	ctrlOpts := []tunnel.Option{tunnel.WithMock(conf.Mock)}
	if m.sink != nil {
		ctrlOpts = append(ctrlOpts, tunnel.WithHistory(m.sink))
	}
	m.ctrl = tunnel.NewController(runner, state.New(conf.RunFile), ctrlOpts...)
	return m, nil
}

// List returns the configuration names matched by pattern.
func (m *Manager) List(pattern *regexp.Regexp) ([]string, error) {
	matches, err := catalog.Find(m.conf.Dir, pattern)
	if err != nil {
		return nil, err
	}
	metrics.SetMatches(len(matches))
	return matches, nil
}

// PrintList writes the matched names to the output, one per line.
func (m *Manager) PrintList(pattern *regexp.Regexp) error {
	matches, err := m.List(pattern)
	if err != nil {
		return err
	}
	for _, name := range matches {
		if _, err := fmt.Fprintln(m.out, name); err != nil {
			return err
		}
	}
	return nil
}

// Up rotates to a random configuration matched by pattern. The active configuration,
// if any, is brought down first and is not picked again unless it is the only match.
// Nothing is torn down when pattern matches nothing.
func (m *Manager) Up(ctx context.Context, pattern *regexp.Regexp) (string, error) {
	matches, err := m.List(pattern)
	if err != nil {
		return "", err
	}
	slog.Debug("matches", "pattern", pattern.String(), "names", matches)
	if len(matches) == 0 {
		return "", &catalog.NoMatchError{Pattern: pattern.String()}
	}

	previous, _, err := m.ctrl.Deactivate(ctx)
	if err != nil {
		return "", err
	}
	// a crash between the down above and the up below leaves the run file empty
	name, _ := m.sel.Select(matches, previous)
	slog.Debug("selected", "name", name, "previous", previous)
	if err := m.ctrl.Activate(ctx, name); err != nil {
		return "", err
	}
	return name, nil
}

// Down brings the active configuration down, if there is one.
func (m *Manager) Down(ctx context.Context) (name string, wasActive bool, err error) {
	return m.ctrl.Deactivate(ctx)
}

// Status describes the recorded configuration and what the host reports about it.
// Up is true when the interface exists or a configured check passed.
type Status struct {
	Active    string        `json:"active,omitempty"`
	Up        bool          `json:"up"`
	Interface bool          `json:"interface"`
	Checks    []CheckResult `json:"checks,omitempty"`
}

type CheckResult struct {
	Detector string `json:"detector"`
	Alive    bool   `json:"alive"`
	Error    string `json:"error,omitempty"`
}

// Status reads the run file and probes the host without changing anything.
func (m *Manager) Status() (Status, error) {
	name, ok, err := m.ctrl.Active()
	if err != nil {
		return Status{}, err
	}
	if !ok {
		return Status{}, nil
	}
	st := Status{Active: name}

	dets := []detector.Detector{m.ifaces(name)}
	if m.conf.Status.Check != "" {
		dets = append(dets, detector.CommandDetector{Command: m.conf.Status.Check, Name: name})
	}
	for i, d := range dets {
		alive, derr := d.Alive()
		res := CheckResult{Detector: d.Describe(), Alive: alive}
		if derr != nil {
			res.Error = derr.Error()
			slog.Warn("status check failed", "detector", d.Describe(), "error", derr)
		}
		if i == 0 {
			st.Interface = alive
		}
		st.Up = st.Up || alive
		st.Checks = append(st.Checks, res)
	}
	return st, nil
}

// WriteMetrics exports the collected metrics when a textfile is configured.
func (m *Manager) WriteMetrics() error {
	if m.registry == nil {
		return nil
	}
	if err := metrics.WriteTextfile(m.conf.Metrics.Textfile, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Close releases the history sink opened from the config DSN.
func (m *Manager) Close() error {
	return m.closeSink()
}

func (m *Manager) closeSink() error {
	if !m.ownSink {
		return nil
	}
	if c, ok := m.sink.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// IsNoMatch reports whether err means no configuration matched.
func IsNoMatch(err error) bool { return errors.Is(err, ErrNoMatch) }
