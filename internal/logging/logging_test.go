package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLevelForKnownLevels(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"":      zapcore.InfoLevel,
	}
	for input, want := range cases {
		require.Equal(t, want, levelFor(input), "levelFor(%q)", input)
	}
}

func TestLevelForUnknownDefaultsToInfo(t *testing.T) {
	require.Equal(t, zapcore.InfoLevel, levelFor("trace"))
}

func TestNewWritesRotatedFileSink(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "browsergate.log")

	log, err := New(Config{LogLevel: "debug", FilePath: path, MaxSizeMB: 1})
	require.NoError(t, err)
	log.Info("hello from the test")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "hello from the test")
}

func TestNewWithoutFilePathStillConstructs(t *testing.T) {
	log, err := New(Config{LogLevel: "info"})
	require.NoError(t, err)
	require.NotNil(t, log)
}

func TestMustNewPanicsNever(t *testing.T) {
	require.NotPanics(t, func() {
		MustNew(Config{LogLevel: "warn"})
	})
}
