package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/fiber/internal/config"
	"github.com/vango-dev/fiber/pkg/commitlog"
)

const passing = `name: two items
steps:
  - render:
      tag: ul
      children:
        - {tag: li, key: a, text: a}
        - {tag: li, key: b, text: b}
    expect: <ul><li>a</li><li>b</li></ul>
  - render:
      tag: ul
      children:
        - {tag: li, key: b, text: b}
        - {tag: li, key: a, text: a}
    expect: <ul><li>b</li><li>a</li></ul>
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunScenario(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "list.yaml", passing)

	var out bytes.Buffer
	require.NoError(t, runScenario(context.Background(), &out, path, runOptions{}, quiet()))

	s := out.String()
	assert.Contains(t, s, "two items (legacy)")
	assert.Contains(t, s, "commit #1")
	assert.Contains(t, s, "commit #2")
	assert.Contains(t, s, "MoveNode")
	assert.Contains(t, s, "<ul><li>b</li><li>a</li></ul>")
	assert.Contains(t, s, "All expect checks passed")
}

func TestRunScenarioJSONAndOut(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "list.yaml", passing)
	outPath := filepath.Join(dir, "logs", "commits.jsonl")

	var out bytes.Buffer
	opts := runOptions{jsonOut: true, outPath: outPath}
	require.NoError(t, runScenario(context.Background(), &out, path, opts, quiet()))

	lines := strings.SplitN(out.String(), "\n", 3)
	require.Len(t, lines, 3)
	records, err := commitlog.Decode(strings.NewReader(lines[0] + "\n" + lines[1] + "\n"))
	require.NoError(t, err)
	assert.Len(t, records, 2)

	saved, err := commitlog.ReadFile(outPath)
	require.NoError(t, err)
	assert.Len(t, saved, 2)
}

func TestRunScenarioFailedExpect(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.yaml", "steps:\n  - render: {tag: p, text: hi}\n    expect: <p>bye</p>\n")

	var out bytes.Buffer
	err := runScenario(context.Background(), &out, path, runOptions{}, quiet())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 expect check(s) failed")
	assert.Contains(t, out.String(), "step 1")
}

func TestRunCommandUsesScenariosDir(t *testing.T) {
	dir := t.TempDir()
	cfg := config.New()
	require.NoError(t, cfg.SaveTo(filepath.Join(dir, config.ConfigFileName)))
	writeFile(t, dir, filepath.Join("scenarios", "list.yaml"), passing)

	out, err := execute(t, "run", "list.yaml", "--config", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "two items")
}

func TestResolveScenario(t *testing.T) {
	dir := t.TempDir()
	cfg := config.New()
	require.NoError(t, cfg.SaveTo(filepath.Join(dir, config.ConfigFileName)))
	inDir := writeFile(t, dir, filepath.Join("scenarios", "a.yaml"), passing)

	assert.Equal(t, inDir, resolveScenario(cfg, "a.yaml"))
	assert.Equal(t, "missing.yaml", resolveScenario(cfg, "missing.yaml"))
	assert.Equal(t, "/abs/x.yaml", resolveScenario(cfg, "/abs/x.yaml"))
}

func TestLoadConfigFlags(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, config.New().SaveTo(filepath.Join(dir, config.ConfigFileName)))

	flags := &globalFlags{configDir: dir, logLevel: "debug", logFormat: "json"}
	cfg, err := flags.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	flags.logLevel = "loud"
	_, err = flags.loadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")

	_, err = (&globalFlags{configDir: t.TempDir()}).loadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "F060")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.LogConfig{Level: "warn", Format: "json"})
	logger.Info("hidden")
	logger.Warn("shown", "k", 1)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelError))
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
}

func TestBench(t *testing.T) {
	for _, mode := range []string{"legacy", "concurrent"} {
		t.Run(mode, func(t *testing.T) {
			var out bytes.Buffer
			err := runBench(&out, benchOptions{sizes: []int{5}, iters: 3, mode: mode}, quiet())
			require.NoError(t, err)

			s := out.String()
			for _, op := range benchOps {
				assert.Contains(t, s, op.name)
			}
			assert.Contains(t, s, mode+" root")
		})
	}

	err := runBench(&bytes.Buffer{}, benchOptions{sizes: []int{1}, iters: 1, mode: "eager"}, quiet())
	assert.Error(t, err)
}

func TestBenchOpsKeepKeys(t *testing.T) {
	rows := []row{{"a", "a"}, {"b", "b"}, {"c", "c"}, {"d", "d"}}
	for _, op := range benchOps {
		if op.next == nil {
			continue
		}
		next := op.next(rows, 1)
		assert.Len(t, next, len(rows), op.name)
		assert.Equal(t, "a", rows[0].key, "%s mutated its input", op.name)
	}

	reverse := benchOps[1].next(rows, 0)
	assert.Equal(t, "d", reverse[0].key)
}

func TestDemoStateAdvance(t *testing.T) {
	st := newDemoState(3)
	next := st.advance()

	assert.Equal(t, 1, next.tick)
	assert.Equal(t, "row-1", next.rows[0].key)
	assert.Equal(t, "row-1 @1", next.rows[0].text)
	assert.Equal(t, "row-0", next.rows[2].key)
	assert.Equal(t, "row-0", st.rows[0].text)

	assert.Equal(t, 1, newDemoState(0).advance().tick)
}

func TestCommitSink(t *testing.T) {
	dir := t.TempDir()
	cfg := config.New()
	require.NoError(t, cfg.SaveTo(filepath.Join(dir, config.ConfigFileName)))
	assert.Nil(t, commitSink(cfg))

	cfg.CommitLog.Path = "commits.jsonl"
	fs, ok := commitSink(cfg).(*commitlog.FileSink)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "commits.jsonl"), fs.Path())

	cfg.CommitLog.S3Bucket = "bucket"
	cfg.CommitLog.S3Region = "us-east-1"
	_, ok = commitSink(cfg).(*commitlog.FileSink)
	assert.False(t, ok)

	cfg.CommitLog.Path = ""
	_, ok = commitSink(cfg).(*commitlog.S3Sink)
	assert.True(t, ok)
}

func TestEnvCredentials(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	_, err := envCredentials{}.Retrieve(context.Background())
	assert.Error(t, err)

	t.Setenv("AWS_ACCESS_KEY_ID", "id")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("AWS_SESSION_TOKEN", "token")
	creds, err := envCredentials{}.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "id", creds.AccessKeyID)
	assert.Equal(t, "token", creds.SessionToken)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)

	out, err = execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Go version:")
}
