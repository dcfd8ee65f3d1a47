package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/SWAI-Ltd/multipass/internal/config"
)

func TestSetupLogger_FileOutput(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "logs", "node.log")
	prev := zap.L()
	defer zap.ReplaceGlobals(prev)

	logger, err := SetupLogger(config.LogConfig{Level: "warn", Format: "json", Outputs: []string{path}})
	req.NoError(err)
	logger.Info("hidden")
	logger.Warn("shown", zap.String("k", "v"))
	req.NoError(logger.Sync())

	b, err := os.ReadFile(path)
	req.NoError(err)
	req.NotContains(string(b), "hidden")
	req.Contains(string(b), `"msg":"shown"`)
	req.Equal(1, strings.Count(string(b), "\n"))
	req.Same(logger, zap.L())
}

func TestSetupLogger_Rotation(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	prev := zap.L()
	defer zap.ReplaceGlobals(prev)

	logger, err := SetupLogger(config.LogConfig{
		Level:   "info",
		Outputs: []string{filepath.Join(dir, "ignored.log")},
		Rotation: config.RotationConfig{
			Enable:   true,
			Filename: filepath.Join(dir, "rotated.log"),
		},
	})
	req.NoError(err)
	logger.Info("rotated")
	_ = logger.Sync()

	_, err = os.Stat(filepath.Join(dir, "rotated.log"))
	req.NoError(err)
}

func TestParseLevel(t *testing.T) {
	req := require.New(t)
	req.Equal(zapcore.DebugLevel, parseLevel("DEBUG"))
	req.Equal(zapcore.WarnLevel, parseLevel("warning"))
	req.Equal(zapcore.ErrorLevel, parseLevel("error"))
	req.Equal(zapcore.InfoLevel, parseLevel(""))
}
