package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("MICSCRIBE_CONFIG", "")
	t.Setenv("MICSCRIBE_ENV_FILE", filepath.Join(home, "missing.env"))
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "en-US", cfg.Recognition.Language)
	assert.Equal(t, []string{"deepgram", "openai"}, cfg.Recognition.Backends)
	assert.Equal(t, 8*time.Second, cfg.Recognition.NoSpeechTimeout())
	assert.Equal(t, 4*time.Second, cfg.Recognition.FinishTimeout())
	assert.Equal(t, "https://api.deepgram.com/v1", cfg.Deepgram.APIBaseURL)
	assert.True(t, cfg.Deepgram.SmartFormat)
	assert.Equal(t, "gpt-4o-transcribe", cfg.OpenAI.Model)
	assert.Equal(t, "ffmpeg", cfg.Audio.RecorderCommand)
	assert.Equal(t, 16000, cfg.Audio.SampleRate)
	assert.Equal(t, 4096, cfg.Session.ChunkSize)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Path)
}

func TestLoadReadsTOMLFromHome(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, ".config", "micscribe", "config.toml")
	writeFile(t, path, `
[recognition]
language = "de-DE"
backends = ["openai"]
no_speech_timeout_ms = 0

[openai]
api_key = "file-key"
noise_reduction = "near_field"

[audio]
input_device = "usb-mic"
`)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, "de-DE", cfg.Recognition.Language)
	assert.Equal(t, []string{"openai"}, cfg.Recognition.Backends)
	assert.Zero(t, cfg.Recognition.NoSpeechTimeout())
	assert.Equal(t, "file-key", cfg.OpenAI.APIKey)
	assert.Equal(t, "near_field", cfg.OpenAI.NoiseReduction)
	assert.Equal(t, "usb-mic", cfg.Audio.InputDevice)
	assert.Equal(t, "pulse", cfg.Audio.InputFormat)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "custom.toml")
	writeFile(t, path, `
[deepgram]
api_key = "file-key"
model = "nova-3"
`)

	t.Setenv("MICSCRIBE_CONFIG", path)
	t.Setenv("DEEPGRAM_API_KEY", "env-key")
	t.Setenv("DEEPGRAM_SMART_FORMAT", "false")
	t.Setenv("MICSCRIBE_BACKENDS", "openai, deepgram,")
	t.Setenv("MICSCRIBE_AUDIO_INPUT_DEVICE", "")
	t.Setenv("PULSE_SOURCE", "pulse-mic")
	t.Setenv("MICSCRIBE_SAMPLE_RATE", "22050")
	t.Setenv("MICSCRIBE_AUDIO_CHUNK_SIZE", "512")
	t.Setenv("MICSCRIBE_LOG_DEVELOPMENT", "yes")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Deepgram.APIKey)
	assert.Equal(t, "nova-3", cfg.Deepgram.Model)
	assert.False(t, cfg.Deepgram.SmartFormat)
	assert.Equal(t, []string{"openai", "deepgram"}, cfg.Recognition.Backends)
	assert.Equal(t, "pulse-mic", cfg.Audio.InputDevice)
	assert.Equal(t, 22050, cfg.Audio.SampleRate)
	assert.Equal(t, 512, cfg.Session.ChunkSize)
	assert.True(t, cfg.Logging.Development)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	home := isolate(t)
	t.Setenv("MICSCRIBE_CONFIG", filepath.Join(home, "nope.toml"))

	_, err := Load()
	require.Error(t, err)
}

func TestLoadMalformedFileFails(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "bad.toml")
	writeFile(t, path, "[recognition\nlanguage = ")
	t.Setenv("MICSCRIBE_CONFIG", path)

	_, err := Load()
	require.Error(t, err)
}

func TestLoadDotEnvFillsUnsetVariables(t *testing.T) {
	home := isolate(t)
	envFile := filepath.Join(home, "test.env")
	writeFile(t, envFile, "MICSCRIBE_TEST_ONLY_LANGUAGE_HINT=1\nMICSCRIBE_FINISH_TIMEOUT_MS=1500\n")
	t.Setenv("MICSCRIBE_ENV_FILE", envFile)
	t.Cleanup(func() {
		_ = os.Unsetenv("MICSCRIBE_TEST_ONLY_LANGUAGE_HINT")
		_ = os.Unsetenv("MICSCRIBE_FINISH_TIMEOUT_MS")
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "1", os.Getenv("MICSCRIBE_TEST_ONLY_LANGUAGE_HINT"))
	assert.Equal(t, 1500*time.Millisecond, cfg.Recognition.FinishTimeout())
}

func TestLoadInvalidValuesFallback(t *testing.T) {
	isolate(t)
	t.Setenv("MICSCRIBE_SAMPLE_RATE", "bad")
	t.Setenv("MICSCRIBE_CHANNELS", "-1")
	t.Setenv("MICSCRIBE_AUDIO_CHUNK_SIZE", "5")
	t.Setenv("MICSCRIBE_NO_SPEECH_TIMEOUT_MS", "-20")
	t.Setenv("MICSCRIBE_FINISH_TIMEOUT_MS", "0")
	t.Setenv("MICSCRIBE_BACKENDS", " , ")
	t.Setenv("DEEPGRAM_SMART_FORMAT", "not-bool")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 16000, cfg.Audio.SampleRate)
	assert.Equal(t, 1, cfg.Audio.Channels)
	assert.Equal(t, 4096, cfg.Session.ChunkSize)
	assert.Zero(t, cfg.Recognition.NoSpeechTimeoutMS)
	assert.Equal(t, 4000, cfg.Recognition.FinishTimeoutMS)
	assert.Equal(t, []string{"deepgram", "openai"}, cfg.Recognition.Backends)
	assert.True(t, cfg.Deepgram.SmartFormat)
}
