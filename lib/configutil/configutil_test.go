package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Host  string `json:"host"`
	Delay int    `json:"delay"`
	Smtp  struct {
		Server string `json:"server"`
	} `json:"smtp"`
}

func write(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "nope.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadConfigDefaultOnly(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "fisher.json5"), `{
		// json5 comments are allowed
		host: "https://scholar.google.com",
		delay: 3,
	}`)

	config, err := ReadConfig[testConfig](filepath.Join(dir, "fisher.json5"))
	require.NoError(t, err)
	require.Equal(t, "https://scholar.google.com", config.Host)
	require.Equal(t, 3, config.Delay)
}

func TestReadConfigLocalOverride(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "fisher.json5"), `{
		host: "https://scholar.google.com",
		delay: 3,
		smtp: { server: "default.example.com" },
	}`)
	write(t, filepath.Join(dir, "fisher.local.json5"), `{
		smtp: { server: "secret.example.com" },
	}`)

	config, err := ReadConfig[testConfig](filepath.Join(dir, "fisher.json5"))
	require.NoError(t, err)
	// untouched values survive the merge
	require.Equal(t, "https://scholar.google.com", config.Host)
	require.Equal(t, 3, config.Delay)
	// overridden values win
	require.Equal(t, "secret.example.com", config.Smtp.Server)
}

func TestReadConfigLocalOnly(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "fisher.local.json5"), `{ host: "local" }`)

	config, err := ReadConfig[testConfig](filepath.Join(dir, "fisher.json5"))
	require.NoError(t, err)
	require.Equal(t, "local", config.Host)
}
