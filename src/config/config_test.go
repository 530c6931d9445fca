package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
}

func TestLoadConfigsMergesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, "config.json", `{
		"email": {"server": "imap.example.com:993", "check_interval": "30s"},
		"ingest": {"skip_rows": 0},
		"log_level": "DEBUG"
	}`)
	writeJSON(t, dir, "dataconfig.json", `{
		"bands": {"Lux": "100,300,500"},
		"defaults": {"parameter": "Air Temperature", "hours": "8-18"}
	}`)

	cfg, presets, err := loadConfigs(dir, "config.json", "dataconfig.json")
	require.NoError(t, err)

	assert.Equal(t, "imap.example.com:993", cfg.Email.Server)
	assert.Equal(t, Duration(30*time.Second), cfg.Email.CheckInterval)
	assert.Equal(t, 0, cfg.Ingest.SkipRows)
	assert.Equal(t, 1900, cfg.Ingest.ReferenceYear)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "./reports", cfg.OutputDir)
	assert.Equal(t, Duration(time.Hour), cfg.ReportInterval)

	// JSON 里的 map 与默认值合并
	v, ok := presets.GetBandPreset("Lux")
	assert.True(t, ok)
	assert.Equal(t, "100,300,500", v)
	v, ok = presets.GetBandPreset("PMV")
	assert.True(t, ok)
	assert.Equal(t, "-1,1", v)

	assert.Equal(t, "Air Temperature", presets.Defaults.Parameter)
	assert.Equal(t, "8-18", presets.Defaults.Hours)
	assert.Equal(t, "0-6", presets.Defaults.Days)
	assert.Equal(t, 50.0, presets.Daylight.SDAThreshold)
}

func TestLoadConfigsWithoutPresetFile(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, "config.json", `{}`)

	cfg, presets, err := loadConfigs(dir, "config.json", "missing.json")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, DefaultPresets(), presets)
}

func TestLoadConfigsErrors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := loadConfigs(dir, "config.json", "dataconfig.json")
	assert.Error(t, err)

	writeJSON(t, dir, "config.json", `{"email": {"check_interval": "soon"}}`)
	writeJSON(t, dir, "dataconfig.json", `{"bands": [1, 2]}`)
	_, _, err = loadConfigs(dir, "config.json", "dataconfig.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "多个错误")
	assert.Contains(t, err.Error(), "解析Config失败")
	assert.Contains(t, err.Error(), "解析PresetConfig失败")
}

func TestPresetAccessors(t *testing.T) {
	p := &PresetConfig{}
	_, ok := p.GetThresholdPreset("PMV")
	assert.False(t, ok)

	p.SetThresholdPreset("PMV", "above:1:20")
	p.SetBandPreset("Lux", "100,300")
	p.SetBandPreset("PMV", "-1,1")

	v, ok := p.GetThresholdPreset("PMV")
	assert.True(t, ok)
	assert.Equal(t, "above:1:20", v)
	assert.Equal(t, []string{"Lux", "PMV"}, p.PresetNames())
}

func TestDurationJSON(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, 90*time.Second, time.Duration(d))

	out, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(out))
	assert.Equal(t, "1m30s", d.String())

	assert.Error(t, d.UnmarshalJSON([]byte(`90`)))
}

func TestLoadWithoutConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, "dataconfig.json", `{"thresholds": {"Lux": "below:300:10"}}`)

	cfg, presets, err := Load(dir, "config.json", "dataconfig.json")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	v, ok := presets.GetThresholdPreset("Lux")
	assert.True(t, ok)
	assert.Equal(t, "below:300:10", v)

	writeJSON(t, dir, "config.json", `{"output_dir": "out"}`)
	cfg, _, err = Load(dir, "config.json", "dataconfig.json")
	require.NoError(t, err)
	assert.Equal(t, "out", cfg.OutputDir)
}
