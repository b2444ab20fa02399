package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	s, err := Load(New(), "")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8000", s.BaseURL)
	require.Equal(t, 2*time.Minute, s.Timeout)
	require.Equal(t, 15*time.Millisecond, s.Typing.BaseDelay)
	require.Equal(t, 150*time.Millisecond, s.Typing.SentencePause)
	require.Equal(t, 5.0, s.Upload.ProgressStep)
	require.Equal(t, "charts", s.ChartsDir)

	p := s.TypingPolicy()
	require.Equal(t, 15*time.Millisecond, p.BaseDelay)
	require.NotNil(t, p.Chunk)
	require.Equal(t, 5.0, s.SessionSettings().ProgressStep)
	require.Equal(t, "info", s.Logging().LogLevel)
	require.Equal(t, "text", s.Logging().LogFormat)
	require.Equal(t, 500*time.Millisecond, s.Watch.Settle)
	require.Len(t, s.WatchOptions(), 2)
}

func TestLoad_FileAndEnv(t *testing.T) {
	p := writeConfig(t, `
base-url: https://analysis.example.com
timeout: 30s
typing:
  base-delay: 5ms
upload:
  progress-step: 10
watch:
  max-file-size: 1024
  exclude: ["^backup-"]
`)
	t.Setenv("DATALENS_TYPING_SENTENCE_PAUSE", "1s")
	t.Setenv("DATALENS_LOG_LEVEL", "debug")

	s, err := Load(New(), p)
	require.NoError(t, err)
	require.Equal(t, "https://analysis.example.com", s.BaseURL)
	require.Equal(t, 30*time.Second, s.Timeout)
	require.Equal(t, 5*time.Millisecond, s.Typing.BaseDelay)
	require.Equal(t, time.Second, s.Typing.SentencePause)
	require.Equal(t, 10.0, s.Upload.ProgressStep)
	require.Equal(t, "debug", s.LogLevel)
	require.Equal(t, int64(1024), s.Watch.MaxFileSize)
	require.Equal(t, []string{"^backup-"}, s.Watch.Exclude)
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	for name, body := range map[string]string{
		"empty url":     "base-url: ''",
		"zero timeout":  "timeout: 0s",
		"step too big":  "upload:\n  progress-step: 150",
		"negative wait": "typing:\n  base-delay: -1ms",
		"not yaml":      "base-url: [",
		"log format":    "log-format: xml",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(New(), writeConfig(t, body))
			require.Error(t, err)
		})
	}
}
