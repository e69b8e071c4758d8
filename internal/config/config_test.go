package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadWithPath(t *testing.T) {
	dir := t.TempDir()
	admin := filepath.Join(dir, "admin")
	export := filepath.Join(dir, "export")
	require.NoError(t, os.MkdirAll(admin, 0o755))
	require.NoError(t, os.MkdirAll(export, 0o755))

	path := writeSettings(t, dir, `
admin_data_dir: `+admin+`
export_config_dir: `+export+`
revit_versions: [2022, 2020, 2022, 2021]
prod_mode: true
`)

	cfg, err := LoadWithPath(path)
	require.NoError(t, err)

	assert.True(t, cfg.ProdMode)
	assert.Equal(t, []int{2020, 2021, 2022}, cfg.RevitVersions)
	// значения по умолчанию не затираются пустым yaml
	assert.Equal(t, "Navisworks", cfg.ExportView3Name)
	assert.Equal(t, "ExportIFC.py", cfg.PyRevitScript)
}

func TestLoadWithPathMissingFile(t *testing.T) {
	_, err := LoadWithPath(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidateRequiresVersions(t *testing.T) {
	dir := t.TempDir()
	admin := filepath.Join(dir, "admin")
	export := filepath.Join(dir, "export")
	require.NoError(t, os.MkdirAll(admin, 0o755))
	require.NoError(t, os.MkdirAll(export, 0o755))

	path := writeSettings(t, dir, `
admin_data_dir: `+admin+`
export_config_dir: `+export+`
`)
	_, err := LoadWithPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "revit_versions")
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	admin := filepath.Join(dir, "admin")
	export := filepath.Join(dir, "export")
	other := filepath.Join(dir, "other")
	require.NoError(t, os.MkdirAll(admin, 0o755))
	require.NoError(t, os.MkdirAll(export, 0o755))
	require.NoError(t, os.MkdirAll(other, 0o755))

	path := writeSettings(t, dir, `
admin_data_dir: `+admin+`
export_config_dir: `+export+`
revit_versions: [2021]
`)

	t.Setenv("EXPORTIFC_ADMIN_DATA", other)
	t.Setenv("EXPORTIFC_PROD_MODE", "true")

	cfg, err := LoadWithPath(path)
	require.NoError(t, err)
	assert.Equal(t, other, cfg.AdminDataDir)
	assert.True(t, cfg.ProdMode)
}

func TestDerivedPaths(t *testing.T) {
	c := def()
	c.AdminDataDir = "ad"
	c.ExportConfigDir = "ec"

	assert.Equal(t, filepath.Join("ad", "_logs"), c.LogsDir())
	assert.Equal(t, filepath.Join("ad", "history", "history.db"), c.HistoryDBPath())
	assert.Equal(t, filepath.Join("ad", "manage.yaml"), c.ManagePath())
	assert.Equal(t, filepath.Join("ad", "Task2022.txt"), c.TaskPath(2022))
	assert.Equal(t, filepath.Join("ad", "tmp.csv"), c.CSVPath())
	assert.Equal(t, "IFC_config.json", c.JSONConfigName())
	assert.Equal(t, filepath.Join("ec", "01_Export_Layers", "map.txt"), c.MappingLayersPath("map.txt"))
	assert.Equal(t, filepath.Join("ec", "00_Common", "IFC_config.json"), c.MappingCommonPath("IFC_config.json"))
}
