package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "go_analysis/internal/errors"
)

func TestSetupDefaults(t *testing.T) {
	cfg, err := Setup("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerPort)
	assert.Equal(t, 120*time.Second, cfg.KatagoStartupTimeout)
	assert.Equal(t, 30*time.Second, cfg.KatagoTurnTimeout)
	assert.Equal(t, 30*time.Second, cfg.WatchdogInterval)
	assert.Equal(t, 50*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 16, cfg.StreamBuffer)
	assert.True(t, cfg.IncludeOwnership)
	assert.Equal(t, 1000, cfg.DefaultAnalysisSteps)
	assert.Equal(t, 500000, cfg.MaxSgfBytes)
}

func TestSetupFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analysis.env")
	require.NoError(t, os.WriteFile(path, []byte("KATAGO_TURN_TIMEOUT=5s\nLOG_LEVEL=debug\nSTREAM_BUFFER=2\n"), 0o600))
	t.Setenv("STREAM_BUFFER", "4")

	cfg, err := Setup(path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.KatagoTurnTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 4, cfg.StreamBuffer)
}

func TestSetupRejectsBadBounds(t *testing.T) {
	t.Setenv("MIN_ANALYSIS_STEPS", "200000")
	_, err := Setup("")
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestClampVisits(t *testing.T) {
	cfg := &Config{MinAnalysisSteps: 100, MaxAnalysisSteps: 1000, DefaultAnalysisSteps: 500}
	assert.Equal(t, 500, cfg.ClampVisits(0))
	assert.Equal(t, 100, cfg.ClampVisits(5))
	assert.Equal(t, 1000, cfg.ClampVisits(50000))
	assert.Equal(t, 300, cfg.ClampVisits(300))
}

func TestKatagoPathsOK(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "katago")
	model := filepath.Join(dir, "model.bin.gz")
	require.NoError(t, os.WriteFile(bin, nil, 0o700))
	require.NoError(t, os.WriteFile(model, nil, 0o600))

	cfg := &Config{KatagoPath: bin, KatagoModel: model, KatagoConfig: filepath.Join(dir, "analysis.cfg")}
	assert.True(t, cfg.KatagoPathsOK())

	cfg.KatagoModel = filepath.Join(dir, "missing")
	assert.False(t, cfg.KatagoPathsOK())
}
