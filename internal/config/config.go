package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config stores runtime configuration. Values resolve as defaults, then the TOML file,
// then environment variables (a .env file only fills variables that are unset).
type Config struct {
	Recognition RecognitionConfig `toml:"recognition"`
	Deepgram    DeepgramConfig    `toml:"deepgram"`
	OpenAI      OpenAIConfig      `toml:"openai"`
	Audio       AudioConfig       `toml:"audio"`
	Session     SessionConfig     `toml:"session"`
	Logging     LoggingConfig     `toml:"logging"`

	// Path of the TOML file that was applied, empty when none was found.
	Path string `toml:"-"`
}

type RecognitionConfig struct {
	Language          string   `toml:"language"`
	Backends          []string `toml:"backends"`
	NoSpeechTimeoutMS int      `toml:"no_speech_timeout_ms"`
	FinishTimeoutMS   int      `toml:"finish_timeout_ms"`
}

func (r RecognitionConfig) NoSpeechTimeout() time.Duration {
	return time.Duration(r.NoSpeechTimeoutMS) * time.Millisecond
}

func (r RecognitionConfig) FinishTimeout() time.Duration {
	return time.Duration(r.FinishTimeoutMS) * time.Millisecond
}

type DeepgramConfig struct {
	APIKey      string `toml:"api_key"`
	APIBaseURL  string `toml:"api_base_url"`
	Model       string `toml:"model"`
	Language    string `toml:"language"`
	SmartFormat bool   `toml:"smart_format"`
}

type OpenAIConfig struct {
	APIKey         string `toml:"api_key"`
	APIBaseURL     string `toml:"api_base_url"`
	Model          string `toml:"model"`
	NoiseReduction string `toml:"noise_reduction"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type AudioConfig struct {
	RecorderCommand string `toml:"recorder_command"`
	InputFormat     string `toml:"input_format"`
	InputDevice     string `toml:"input_device"`
	SampleRate      int    `toml:"sample_rate"`
	Channels        int    `toml:"channels"`
}

type SessionConfig struct {
	ChunkSize int `toml:"chunk_size"`
}

type LoggingConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() Config {
	return Config{
		Recognition: RecognitionConfig{
			Language:          "en-US",
			Backends:          []string{"deepgram", "openai"},
			NoSpeechTimeoutMS: 8000,
			FinishTimeoutMS:   4000,
		},
		Deepgram: DeepgramConfig{
			APIBaseURL:  "https://api.deepgram.com/v1",
			Model:       "nova-2",
			SmartFormat: true,
		},
		OpenAI: OpenAIConfig{
			APIBaseURL:     "https://api.openai.com",
			Model:          "gpt-4o-transcribe",
			TimeoutSeconds: 30,
		},
		Audio: AudioConfig{
			RecorderCommand: "ffmpeg",
			InputFormat:     "pulse",
			InputDevice:     "default",
			SampleRate:      16000,
			Channels:        1,
		},
		Session: SessionConfig{ChunkSize: 4096},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load resolves configuration from the optional .env and TOML files and the environment.
func Load() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}

	cfg := Defaults()

	path, explicit, err := configPath()
	if err != nil {
		return Config{}, err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		cfg.Path = path
	} else if explicit {
		return Config{}, fmt.Errorf("config file %s: %w", path, statErr)
	}

	applyEnv(&cfg)
	normalize(&cfg)
	return cfg, nil
}

func loadDotEnv() error {
	path := envOrDefault("MICSCRIBE_ENV_FILE", ".env")
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func configPath() (string, bool, error) {
	if path := strings.TrimSpace(os.Getenv("MICSCRIBE_CONFIG")); path != "" {
		return path, true, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, errors.New("could not determine home directory")
	}
	return filepath.Join(home, ".config", "micscribe", "config.toml"), false, nil
}

func applyEnv(cfg *Config) {
	cfg.Recognition.Language = envOrDefault("MICSCRIBE_LANGUAGE", cfg.Recognition.Language)
	cfg.Recognition.Backends = envOrDefaultList("MICSCRIBE_BACKENDS", cfg.Recognition.Backends)
	cfg.Recognition.NoSpeechTimeoutMS = envOrDefaultInt("MICSCRIBE_NO_SPEECH_TIMEOUT_MS", cfg.Recognition.NoSpeechTimeoutMS)
	cfg.Recognition.FinishTimeoutMS = envOrDefaultInt("MICSCRIBE_FINISH_TIMEOUT_MS", cfg.Recognition.FinishTimeoutMS)

	cfg.Deepgram.APIKey = envOrDefault("DEEPGRAM_API_KEY", cfg.Deepgram.APIKey)
	cfg.Deepgram.APIBaseURL = envOrDefault("DEEPGRAM_API_BASE", cfg.Deepgram.APIBaseURL)
	cfg.Deepgram.Model = envOrDefault("DEEPGRAM_MODEL", cfg.Deepgram.Model)
	cfg.Deepgram.Language = envOrDefault("DEEPGRAM_LANGUAGE", cfg.Deepgram.Language)
	cfg.Deepgram.SmartFormat = envOrDefaultBool("DEEPGRAM_SMART_FORMAT", cfg.Deepgram.SmartFormat)

	cfg.OpenAI.APIKey = envOrDefault("OPENAI_API_KEY", cfg.OpenAI.APIKey)
	cfg.OpenAI.APIBaseURL = envOrDefault("OPENAI_API_BASE", cfg.OpenAI.APIBaseURL)
	cfg.OpenAI.Model = envOrDefault("OPENAI_TRANSCRIBE_MODEL", cfg.OpenAI.Model)
	cfg.OpenAI.NoiseReduction = envOrDefault("OPENAI_NOISE_REDUCTION", cfg.OpenAI.NoiseReduction)

	cfg.Audio.RecorderCommand = envOrDefault("MICSCRIBE_FFMPEG_COMMAND", cfg.Audio.RecorderCommand)
	cfg.Audio.InputFormat = envOrDefault("MICSCRIBE_AUDIO_INPUT_FORMAT", cfg.Audio.InputFormat)
	cfg.Audio.InputDevice = firstNonEmpty(
		os.Getenv("MICSCRIBE_AUDIO_INPUT_DEVICE"),
		os.Getenv("PULSE_SOURCE"),
		cfg.Audio.InputDevice,
	)
	cfg.Audio.SampleRate = envOrDefaultInt("MICSCRIBE_SAMPLE_RATE", cfg.Audio.SampleRate)
	cfg.Audio.Channels = envOrDefaultInt("MICSCRIBE_CHANNELS", cfg.Audio.Channels)

	cfg.Session.ChunkSize = envOrDefaultInt("MICSCRIBE_AUDIO_CHUNK_SIZE", cfg.Session.ChunkSize)

	cfg.Logging.Level = envOrDefault("MICSCRIBE_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Development = envOrDefaultBool("MICSCRIBE_LOG_DEVELOPMENT", cfg.Logging.Development)
}

func normalize(cfg *Config) {
	defaults := Defaults()

	if strings.TrimSpace(cfg.Recognition.Language) == "" {
		cfg.Recognition.Language = defaults.Recognition.Language
	}
	if len(cfg.Recognition.Backends) == 0 {
		cfg.Recognition.Backends = defaults.Recognition.Backends
	}
	if cfg.Recognition.NoSpeechTimeoutMS < 0 {
		cfg.Recognition.NoSpeechTimeoutMS = 0
	}
	if cfg.Recognition.FinishTimeoutMS <= 0 {
		cfg.Recognition.FinishTimeoutMS = defaults.Recognition.FinishTimeoutMS
	}
	if cfg.OpenAI.TimeoutSeconds <= 0 {
		cfg.OpenAI.TimeoutSeconds = defaults.OpenAI.TimeoutSeconds
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = defaults.Audio.SampleRate
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = defaults.Audio.Channels
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = defaults.Session.ChunkSize
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func envOrDefaultList(key string, fallback []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
