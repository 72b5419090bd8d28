package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/todochain/internal/program"
)

// isolate points HOME and the working directory at empty temp dirs and
// clears the TADA_* variables.
func isolate(t *testing.T) (home, wd string) {
	t.Helper()
	home, wd = t.TempDir(), t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{
		"TADA_PROGRAM", "TADA_KEYPAIR_PATH", "TADA_STORE", "TADA_STORE_PATH",
		"TADA_DSN", "TADA_LOG_LEVEL", "TADA_LOG_FORMAT", "TADA_THEME",
	} {
		t.Setenv(k, "")
	}
	chdir(t, wd)
	return home, wd
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)

	id, err := cfg.ProgramID()
	require.NoError(t, err)
	assert.Equal(t, program.DefaultID, id)
}

func TestLoad_Precedence(t *testing.T) {
	home, wd := isolate(t)

	writeFile(t, filepath.Join(home, ".tada", "config.toml"), `
[store]
backend = "sqlite"
path = "user.db"

[log]
level = "info"
`)
	writeFile(t, filepath.Join(wd, "todo.toml"), `
[store]
path = "project.db"

[ui]
theme = "neon"
`)
	explicit := filepath.Join(wd, "explicit.toml")
	writeFile(t, explicit, `
[ui]
theme = "mono"
group = true
`)
	t.Setenv("TADA_LOG_LEVEL", "debug")

	cfg, err := Load(explicit)
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "project.db", cfg.Store.Path)
	assert.Equal(t, "mono", cfg.UI.Theme)
	assert.True(t, cfg.UI.Group)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Log.Format)
}

func TestLoad_UnknownKey(t *testing.T) {
	_, wd := isolate(t)
	writeFile(t, filepath.Join(wd, ".todo.toml"), `colour = "red"`)
	_, err := Load("")
	assert.ErrorContains(t, err, "colour")
}

func TestLoad_MissingExplicit(t *testing.T) {
	isolate(t)
	_, err := Load("nope.toml")
	assert.Error(t, err)
}

func TestFinalize(t *testing.T) {
	home, wd := isolate(t)

	cfg := Defaults()
	cfg.KeypairPath = "~/keys/id.json"
	require.NoError(t, cfg.Finalize())
	assert.Equal(t, filepath.Join(home, "keys", "id.json"), cfg.KeypairPath)
	assert.Equal(t, filepath.Join(wd, DefaultStorePath), cfg.Store.Path)

	bad := Defaults()
	bad.Store.Backend = "redis"
	assert.Error(t, bad.Finalize())

	pg := Defaults()
	pg.Store.Backend = BackendPostgres
	assert.Error(t, pg.Finalize())
	pg.Store.DSN = "postgres://localhost/todo"
	assert.NoError(t, pg.Finalize())

	prog := Defaults()
	prog.Program = "not-base58!"
	assert.Error(t, prog.Finalize())
}

func TestWrite_RoundTrips(t *testing.T) {
	cfg := Defaults()
	cfg.Store.Backend = BackendPostgres
	cfg.Store.DSN = "postgres://localhost/todo"

	var buf bytes.Buffer
	require.NoError(t, cfg.Write(&buf))

	got := &Config{}
	_, err := toml.Decode(buf.String(), got)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
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
