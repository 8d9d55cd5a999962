package cmd

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/labelscan/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cliResult holds what one command invocation wrote.
type cliResult struct {
	stdout string
	stderr string
}

// isolate runs the test in an empty directory with an empty home so no real
// config file or .env is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	home := filepath.Join(dir, "home")
	require.NoError(t, os.MkdirAll(home, 0o755))
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	work := filepath.Join(dir, "work")
	require.NoError(t, os.MkdirAll(work, 0o755))
	t.Chdir(work)

	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })
	return work
}

// run executes a fresh command tree with args and optional stdin.
func run(t *testing.T, stdin string, args ...string) (cliResult, error) {
	t.Helper()
	root := NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return cliResult{stdout: stdout.String(), stderr: stderr.String()}, err
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRootCommand(t *testing.T) {
	root := NewRootCommand()
	assert.Equal(t, "labelscan", root.Use)
	assert.NotEmpty(t, root.Short)
	assert.NotEmpty(t, root.Long)

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, expected := range []string{"scan", "analyze", "serve", "config", "version"} {
		assert.Contains(t, names, expected, "Expected subcommand '%s' not found", expected)
	}
}

func TestRootCommandHelp(t *testing.T) {
	isolate(t)

	res, err := run(t, "", "--help")
	require.NoError(t, err)
	assert.Contains(t, res.stdout, "photographed food labels")
	assert.Contains(t, res.stdout, "Available Commands:")
	assert.Contains(t, res.stdout, "Usage:")
}

func TestRootCommandWithoutArgsShowsHelp(t *testing.T) {
	isolate(t)

	res, err := run(t, "")
	require.NoError(t, err)
	assert.Contains(t, res.stdout, "Available Commands:")
}

func TestRootCommandInvalidFlag(t *testing.T) {
	isolate(t)

	_, err := run(t, "", "--no-such-flag")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestRootCommand_InvalidConfigFails(t *testing.T) {
	work := isolate(t)
	cfgPath := writeFile(t, filepath.Join(work, "bad.yaml"), "log_level: loud\n")

	_, err := run(t, "", "--config", cfgPath, "analyze", "--text", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error loading configuration")
}

func TestRootCommand_MissingExplicitConfigFails(t *testing.T) {
	work := isolate(t)

	_, err := run(t, "", "--config", filepath.Join(work, "missing.yaml"), "analyze", "--text", "x")
	require.Error(t, err)
}

func TestRootCommand_LogsGoToStderr(t *testing.T) {
	isolate(t)

	res, err := run(t, "", "--verbose", "analyze", "--text", crackerText, "--allergen", "milk")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(res.stdout), "{"), "stdout carries only the result")
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Config
		expected slog.Level
	}{
		{"default", config.Config{}, slog.LevelInfo},
		{"debug", config.Config{LogLevel: "debug"}, slog.LevelDebug},
		{"warn", config.Config{LogLevel: "warn"}, slog.LevelWarn},
		{"error", config.Config{LogLevel: "error"}, slog.LevelError},
		{"verbose wins", config.Config{LogLevel: "error", Verbose: true}, slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, logLevel(&tt.cfg))
		})
	}
}

func TestDotEnvIsLoaded(t *testing.T) {
	work := isolate(t)
	writeFile(t, filepath.Join(work, ".env"), "LABELSCAN_SERVER_PORT=9191\n")
	t.Cleanup(func() { _ = os.Unsetenv("LABELSCAN_SERVER_PORT") })

	res, err := run(t, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, res.stdout, "port: 9191")
}
