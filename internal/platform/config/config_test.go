package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "loggate", cfg.App.Name)
	assert.Equal(t, "local", cfg.App.Environment)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "flat", cfg.Log.File.Format)
	assert.Equal(t, "%(levelname)s %(asctime)s %(message)s %(context)s", cfg.Log.File.Template)
	assert.Equal(t, "X-Request-ID", cfg.Instrument.RequestIDHeader)
	assert.False(t, cfg.Instrument.CountQueries)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, DefaultAuditLimitMB, cfg.Log.Audit.LimitMB)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LOGGATE_SERVER_PORT", "9999")
	t.Setenv("LOGGATE_LOG_LEVEL", "debug")
	t.Setenv("LOGGATE_INSTRUMENT_COUNT_QUERIES", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Instrument.CountQueries)
}

func TestLoad_MissingProfileFileIsFine(t *testing.T) {
	cfg, err := Load("does-not-exist")
	require.NoError(t, err)
	assert.Equal(t, "loggate", cfg.App.Name)
}

func TestValidate_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsBadLevel(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Log.Level = "verbose"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level must be one of")
}

func TestValidate_RejectsBadPort(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_FileSinkRequiresPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Log.File.Enabled = true
	cfg.Log.File.Path = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.file.path")
}

func TestValidate_RejectsBadFileFormat(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Log.File.Format = "yaml"
	assert.Error(t, cfg.Validate())
}

func TestValidate_AuditRequiresDirWhenEnabled(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Log.Audit.Enabled = true
	cfg.Log.Audit.Dir = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownDriver(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Database.Driver = "postgres"
	assert.Error(t, cfg.Validate())
}
