package keys

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad_DefaultPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(envKeypair, "")

	k, err := Generate()
	require.NoError(t, err)
	path, err := Save(k, "", false)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	assert.Equal(t, keyFileName, filepath.Base(path))

	got, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "file", got.Source)
	assert.Equal(t, k.Address(), got.Address())
}

func TestSave_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id.json")
	k, err := Generate()
	require.NoError(t, err)
	_, err = Save(k, path, false)
	require.NoError(t, err)

	other, err := Generate()
	require.NoError(t, err)
	_, err = Save(other, path, false)
	assert.ErrorIs(t, err, ErrExists)

	_, err = Save(other, path, true)
	require.NoError(t, err)
	t.Setenv(envKeypair, "")
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, other.Address(), got.Address())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	k, err := Generate()
	require.NoError(t, err)
	t.Setenv(envKeypair, EncodeSecret(k))

	got, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "env", got.Source)
	assert.Equal(t, k.Address(), got.Address())
}

func TestLoad_Missing(t *testing.T) {
	t.Setenv(envKeypair, "")
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, ErrNoKeypair)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv(envKeypair, "")
	dir := t.TempDir()
	tests := map[string]string{
		"not json":     `nope`,
		"short":        `[1,2,3]`,
		"out of range": `[256]`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".json")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MismatchedPublicHalf(t *testing.T) {
	k, err := Generate()
	require.NoError(t, err)
	bad := append([]byte(nil), k.Private...)
	bad[63] ^= 0x01
	_, err = fromSecret(bad)
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id.json")
	k, err := Generate()
	require.NoError(t, err)
	_, err = Save(k, path, false)
	require.NoError(t, err)

	require.NoError(t, Delete(path))
	require.NoError(t, Delete(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
