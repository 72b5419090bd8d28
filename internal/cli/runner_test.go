package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/idilsaglam/todochain/internal/keys"
	"github.com/idilsaglam/todochain/internal/ui"
)

type result struct {
	code           int
	stdout, stderr string
}

// env isolates a run: temp HOME and working dir, a json ledger and a fresh
// keypair passed through the environment.
func env(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	chdir(t, dir)

	k, err := keys.Generate()
	require.NoError(t, err)
	t.Setenv("TADA_KEYPAIR", keys.EncodeSecret(k))
	t.Setenv("TADA_STORE", "json")
	t.Setenv("TADA_STORE_PATH", filepath.Join(dir, "ledger.json"))
	t.Setenv("TADA_THEME", "mono")
	t.Setenv("TADA_LOG_LEVEL", "error")
	for _, k := range []string{"TADA_PROGRAM", "TADA_KEYPAIR_PATH", "TADA_DSN", "TADA_LOG_FORMAT"} {
		t.Setenv(k, "")
	}
	t.Cleanup(func() {
		ui.SetOutput(os.Stdout, os.Stderr)
		_ = ui.SetTheme("classic")
	})
	return dir
}

func run(t *testing.T, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	code := Run(context.Background(), args, Options{Stdout: &out, Stderr: &errOut})
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

func mustRun(t *testing.T, args ...string) result {
	t.Helper()
	r := run(t, args...)
	require.Equal(t, 0, r.code, "todo %s\nstdout: %s\nstderr: %s", strings.Join(args, " "), r.stdout, r.stderr)
	return r
}

func TestScenario(t *testing.T) {
	env(t)

	mustRun(t, "airdrop")
	mustRun(t, "init")
	assert.Contains(t, mustRun(t, "add", "milk").stdout, "added #0")
	assert.Contains(t, mustRun(t, "add", "walk", "the", "dog").stdout, "added #1")
	assert.Contains(t, mustRun(t, "add", "book").stdout, "added #2")
	mustRun(t, "done", "1")
	mustRun(t, "rm", "0")

	ls := mustRun(t, "ls").stdout
	assert.NotContains(t, ls, "0. [ ] milk")
	assert.Contains(t, ls, "[x] walk the dog")
	assert.Contains(t, ls, "[ ] book")

	grouped := mustRun(t, "ls", "--group").stdout
	assert.Less(t, strings.Index(grouped, "Pending"), strings.Index(grouped, "book"))
	assert.Less(t, strings.Index(grouped, "Done"), strings.Index(grouped, "walk the dog"))

	var prof recordView
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "profile", "-o", "json").stdout), &prof))
	require.NotNil(t, prof.Profile)
	assert.Equal(t, uint8(3), prof.Profile.NextIndex)
	assert.Equal(t, uint8(2), prof.Profile.LiveCount)

	var shown recordView
	require.NoError(t, yaml.Unmarshal([]byte(mustRun(t, "show", "1", "-o", "yaml").stdout), &shown))
	require.NotNil(t, shown.Todo)
	assert.True(t, shown.Todo.Completed)
	assert.Equal(t, "walk the dog", shown.Todo.Content)
	assert.NotZero(t, shown.Lamports)
}

func TestMarkTwiceFails(t *testing.T) {
	env(t)
	mustRun(t, "airdrop")
	mustRun(t, "init")
	mustRun(t, "add", "milk")
	mustRun(t, "done", "0")

	r := run(t, "done", "0")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "AlreadyMarked")
}

func TestOperationErrors(t *testing.T) {
	env(t)
	mustRun(t, "airdrop")

	r := run(t, "add", "milk")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "todo init")

	mustRun(t, "init")
	r = run(t, "init")
	assert.Equal(t, 1, r.code)

	r = run(t, "rm", "7")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "todo ls")

	r = run(t, "add", strings.Repeat("x", 40))
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "NotAllowed")
}

func TestUsageErrors(t *testing.T) {
	env(t)
	tests := []struct {
		name string
		args []string
	}{
		{"no subcommand", nil},
		{"unknown subcommand", []string{"frobnicate"}},
		{"done without index", []string{"done"}},
		{"index not a number", []string{"done", "abc"}},
		{"index out of range", []string{"rm", "256"}},
		{"empty add", []string{"add", "  "}},
		{"unknown flag", []string{"ls", "--colour"}},
		{"bad format", []string{"profile", "-o", "xml"}},
		{"bad theme", []string{"--theme", "sepia", "ls"}},
		{"bad backend", []string{"--store", "redis", "ls"}},
		{"migrate json", []string{"migrate"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := run(t, tt.args...)
			assert.Equal(t, 2, r.code, "stderr: %s", r.stderr)
		})
	}
}

func TestKeygenAndWhoami(t *testing.T) {
	dir := env(t)
	t.Setenv("TADA_KEYPAIR", "")

	r := mustRun(t, "keygen")
	path := filepath.Join(dir, ".tada", "id.json")
	assert.Contains(t, r.stdout, path)

	again := run(t, "keygen")
	assert.Equal(t, 1, again.code)
	assert.Contains(t, again.stderr, "--force")
	mustRun(t, "keygen", "--force")

	k, err := keys.Load(path)
	require.NoError(t, err)
	mustRun(t, "airdrop", "5000")
	who := mustRun(t, "whoami").stdout
	assert.Contains(t, who, k.Address().String())
	assert.Contains(t, who, "5000 lamports")
}

func TestSQLiteBackend(t *testing.T) {
	dir := env(t)
	t.Setenv("TADA_STORE", "sqlite")
	t.Setenv("TADA_STORE_PATH", filepath.Join(dir, "ledger.db"))

	mustRun(t, "migrate")
	mustRun(t, "airdrop")
	mustRun(t, "init")
	mustRun(t, "add", "milk")
	assert.Contains(t, mustRun(t, "ls").stdout, "milk")
}

func TestConfigPrintsEffectiveValues(t *testing.T) {
	env(t)
	out := mustRun(t, "--log-format", "json", "config").stdout
	assert.Contains(t, out, `backend = "json"`)
	assert.Contains(t, out, `format = "json"`)
	assert.Contains(t, out, `theme = "mono"`)
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
