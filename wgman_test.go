package wgman

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/wgman/internal/detector"
	"github.com/loykin/wgman/internal/history/sqlite"
	"github.com/loykin/wgman/internal/tunnel"
)

type env struct {
	dir     string
	runFile string
	out     *bytes.Buffer
}

func newEnv(t *testing.T, files ...string) env {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "wireguard")
	require.NoError(t, os.Mkdir(dir, 0o755))
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("[Interface]\n"), 0o600))
	}
	return env{dir: dir, runFile: filepath.Join(root, "wg-man.current"), out: &bytes.Buffer{}}
}

func (e env) config(t *testing.T) Config {
	t.Helper()
	c, err := LoadConfig("")
	require.NoError(t, err)
	c.Dir = e.dir
	c.RunFile = e.runFile
	c.Mock = true
	return c
}

func (e env) manager(t *testing.T, c Config, opts ...Option) *Manager {
	t.Helper()
	m, err := New(c, append([]Option{WithOutput(e.out)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func (e env) runFileContents(t *testing.T) (string, bool) {
	t.Helper()
	b, err := os.ReadFile(e.runFile)
	if os.IsNotExist(err) {
		return "", false
	}
	require.NoError(t, err)
	return string(b), true
}

// cycle returns 0, 1, 2, ... modulo n.
type cycle struct{ i int }

func (c *cycle) IntN(n int) int {
	v := c.i % n
	c.i++
	return v
}

type failingRunner struct{ fail tunnel.Action }

func (f failingRunner) Run(_ context.Context, action tunnel.Action, name string) error {
	if action == f.fail {
		return &tunnel.CommandError{Tool: "wg-quick", Action: action, Name: name, Code: 1, HasCode: true}
	}
	return nil
}

func TestListPatternScenario(t *testing.T) {
	e := newEnv(t, "office.conf", "home.conf", "cafe")
	m := e.manager(t, e.config(t))
	require.NoError(t, m.PrintList(regexp.MustCompile("^ho")))
	assert.Equal(t, "home\n", e.out.String())
	_, exists := e.runFileContents(t)
	assert.False(t, exists, "ls must not touch state")
}

func TestListDefaultPatternMatchesAll(t *testing.T) {
	e := newEnv(t, "office.conf", "home.conf", "cafe")
	m := e.manager(t, e.config(t))
	names, err := m.List(regexp.MustCompile("^"))
	require.NoError(t, err)
	sort.Strings(names)
	assert.Equal(t, []string{"cafe", "home", "office"}, names)
}

func TestListNoMatchIsEmpty(t *testing.T) {
	e := newEnv(t, "office.conf")
	m := e.manager(t, e.config(t))
	require.NoError(t, m.PrintList(regexp.MustCompile("^zzz")))
	assert.Empty(t, e.out.String())
}

func TestUpFromDownScenario(t *testing.T) {
	e := newEnv(t, "a", "b")
	m := e.manager(t, e.config(t))

	name, err := m.Up(context.Background(), regexp.MustCompile("^"))
	require.NoError(t, err)
	assert.Contains(t, []string{"a", "b"}, name)
	assert.Equal(t, "wg-quick up "+name+"\n", e.out.String())

	got, ok := e.runFileContents(t)
	require.True(t, ok)
	assert.Equal(t, name, got)
}

func TestUpRotatesAwayFromPrevious(t *testing.T) {
	e := newEnv(t, "a", "b", "c")
	require.NoError(t, os.WriteFile(e.runFile, []byte("a"), 0o644))
	m := e.manager(t, e.config(t), WithRandSource(&cycle{}))

	for i := 0; i < 20; i++ {
		prev, _ := e.runFileContents(t)
		name, err := m.Up(context.Background(), regexp.MustCompile("^"))
		require.NoError(t, err)
		assert.NotEqual(t, prev, name)
	}
}

func TestUpSingleCandidateReactivates(t *testing.T) {
	e := newEnv(t, "a")
	require.NoError(t, os.WriteFile(e.runFile, []byte("a"), 0o644))
	m := e.manager(t, e.config(t))

	name, err := m.Up(context.Background(), regexp.MustCompile("^"))
	require.NoError(t, err)
	assert.Equal(t, "a", name)
	assert.Equal(t, "wg-quick down a\nwg-quick up a\n", e.out.String())

	got, ok := e.runFileContents(t)
	require.True(t, ok)
	assert.Equal(t, "a", got)
}

func TestUpNoMatchLeavesTunnelAlone(t *testing.T) {
	e := newEnv(t, "office.conf")
	require.NoError(t, os.WriteFile(e.runFile, []byte("office"), 0o644))
	m := e.manager(t, e.config(t))

	_, err := m.Up(context.Background(), regexp.MustCompile("^home"))
	require.Error(t, err)
	assert.True(t, IsNoMatch(err))
	var nm *NoMatchError
	require.ErrorAs(t, err, &nm)
	assert.Equal(t, "^home", nm.Pattern)

	assert.Empty(t, e.out.String())
	got, _ := e.runFileContents(t)
	assert.Equal(t, "office", got)
}

func TestUpActivationFailureLeavesDown(t *testing.T) {
	e := newEnv(t, "a", "b")
	require.NoError(t, os.WriteFile(e.runFile, []byte("a"), 0o644))
	c := e.config(t)
	c.Mock = false
	m := e.manager(t, c, WithRunner(failingRunner{fail: tunnel.Up}))

	_, err := m.Up(context.Background(), regexp.MustCompile("^"))
	var ce *CommandError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, tunnel.Up, ce.Action)

	// the down succeeded, the up did not: nothing is recorded
	_, exists := e.runFileContents(t)
	assert.False(t, exists)
}

func TestUpDeactivationFailureAborts(t *testing.T) {
	e := newEnv(t, "a", "b")
	require.NoError(t, os.WriteFile(e.runFile, []byte("a"), 0o644))
	c := e.config(t)
	c.Mock = false
	m := e.manager(t, c, WithRunner(failingRunner{fail: tunnel.Down}))

	_, err := m.Up(context.Background(), regexp.MustCompile("^"))
	var ce *CommandError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, tunnel.Down, ce.Action)

	got, _ := e.runFileContents(t)
	assert.Equal(t, "a", got)
}

func TestDownScenario(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.WriteFile(e.runFile, []byte("a"), 0o644))
	m := e.manager(t, e.config(t))

	name, was, err := m.Down(context.Background())
	require.NoError(t, err)
	assert.True(t, was)
	assert.Equal(t, "a", name)
	assert.Equal(t, "wg-quick down a\n", e.out.String())
	_, exists := e.runFileContents(t)
	assert.False(t, exists)
}

func TestDownWhenNothingActive(t *testing.T) {
	e := newEnv(t)
	m := e.manager(t, e.config(t))
	_, was, err := m.Down(context.Background())
	require.NoError(t, err)
	assert.False(t, was)
	assert.Empty(t, e.out.String())
}

func TestStatus(t *testing.T) {
	e := newEnv(t, "home.conf")
	c := e.config(t)
	c.Status.Check = "test {name} = home"
	m := e.manager(t, c)
	m.ifaces = func(name string) detector.Detector {
		return detector.CommandDetector{Command: "false", Name: name}
	}

	st, err := m.Status()
	require.NoError(t, err)
	assert.Equal(t, Status{}, st)

	_, err = m.Up(context.Background(), regexp.MustCompile("^"))
	require.NoError(t, err)
	st, err = m.Status()
	require.NoError(t, err)
	assert.Equal(t, "home", st.Active)
	assert.True(t, st.Up)
	assert.False(t, st.Interface)
	require.Len(t, st.Checks, 2)
	assert.True(t, st.Checks[1].Alive)
}

func TestStatusRecordedButNothingAlive(t *testing.T) {
	e := newEnv(t, "home.conf")
	require.NoError(t, os.WriteFile(e.runFile, []byte("home"), 0o644))
	c := e.config(t)
	c.Status.Check = "test {name} = office"
	m := e.manager(t, c)
	m.ifaces = func(name string) detector.Detector {
		return detector.CommandDetector{Command: "false", Name: name}
	}

	st, err := m.Status()
	require.NoError(t, err)
	assert.Equal(t, "home", st.Active)
	assert.False(t, st.Up, "a stale run file alone is not up")
	assert.False(t, st.Interface)
}

func TestStatusUpFromInterfaceAlone(t *testing.T) {
	e := newEnv(t, "home.conf")
	require.NoError(t, os.WriteFile(e.runFile, []byte("home"), 0o644))
	m := e.manager(t, e.config(t))
	m.ifaces = func(name string) detector.Detector {
		return detector.CommandDetector{Command: "true", Name: name}
	}

	st, err := m.Status()
	require.NoError(t, err)
	assert.True(t, st.Up)
	assert.True(t, st.Interface)
	assert.Len(t, st.Checks, 1)
}

func TestHistoryRecordedFromDSN(t *testing.T) {
	e := newEnv(t, "a", "b")
	c := e.config(t)
	dbPath := filepath.Join(t.TempDir(), "history.db")
	c.History.DSN = "sqlite://" + dbPath
	m := e.manager(t, c)

	_, err := m.Up(context.Background(), regexp.MustCompile("^"))
	require.NoError(t, err)
	_, err = m.Up(context.Background(), regexp.MustCompile("^"))
	require.NoError(t, err)
	require.NoError(t, m.Close())

	sink, err := sqlite.New(dbPath)
	require.NoError(t, err)
	defer func() { _ = sink.Close() }()
	events, err := sink.Recent(context.Background(), 10)
	require.NoError(t, err)
	// up, down, up
	assert.Len(t, events, 3)
	for _, ev := range events {
		assert.True(t, ev.Mock)
	}
}

func TestMetricsTextfile(t *testing.T) {
	e := newEnv(t, "a")
	c := e.config(t)
	c.Metrics.Textfile = filepath.Join(t.TempDir(), "wgman.prom")
	m := e.manager(t, c)

	_, err := m.Up(context.Background(), regexp.MustCompile("^"))
	require.NoError(t, err)
	require.NoError(t, m.WriteMetrics())

	b, err := os.ReadFile(c.Metrics.Textfile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(b), `wgman_tunnel_active{name="a"} 1`), string(b))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	e := newEnv(t)
	c := e.config(t)
	c.Tool = ""
	_, err := New(c)
	require.Error(t, err)
}

func TestNewRejectsBadHistoryDSN(t *testing.T) {
	e := newEnv(t)
	c := e.config(t)
	c.History.DSN = "bogus://x"
	_, err := New(c)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoMatch))
}
