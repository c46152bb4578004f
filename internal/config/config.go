// Package config provides the configuration structure for the tara-service.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// APIKeyEnv is the environment variable that overrides the summarizer credential.
const APIKeyEnv = "GEMINI_API_KEY"

// Defaults applied by Validate when a value is left unset.
const (
	defaultSummarizerModel   = "gemini-2.0-flash"
	defaultSummarizerBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultSummarizerTimeout = 60
	defaultTTSBinary         = "tts"
	defaultTTSTimeout        = 300
	defaultOutputDir         = "artifacts"
	defaultLogsDir           = "logs"
	defaultHTTPAddr          = ":8080"
	defaultImageSubject      = "tara.image.uploaded"
	defaultSummarySubject    = "tara.summary.requested"
	defaultImageBucket       = "tara-images"
	defaultAudioBucket       = "tara-audio"
)

var (
	// ErrModelPathEmpty indicates that the synthesis model path is empty.
	ErrModelPathEmpty = errors.New("tts model path cannot be empty")
	// ErrConfigPathEmpty indicates that the synthesis config path is empty.
	ErrConfigPathEmpty = errors.New("tts config path cannot be empty")
)

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                     string `toml:"url"`
	ImageUploadedSubject    string `toml:"image_uploaded_subject"`
	SummaryRequestedSubject string `toml:"summary_requested_subject"`
	ImageObjectStoreBucket  string `toml:"image_object_store_bucket"`
	AudioObjectStoreBucket  string `toml:"audio_object_store_bucket"`
	// AudioTTLSeconds expires uploaded audio. Zero keeps it until it is superseded.
	AudioTTLSeconds         int    `toml:"audio_ttl_seconds"`
}

// OCRConfig holds the text detection settings.
type OCRConfig struct {
	Languages []string `toml:"languages"`
}

// SummarizerConfig holds the settings for the remote summarization capability.
type SummarizerConfig struct {
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// TTSConfig holds the settings for the synthesis process.
type TTSConfig struct {
	BinaryPath     string   `toml:"binary_path"`
	ModelPath      string   `toml:"model_path"`
	ConfigPath     string   `toml:"config_path"`
	SpeakersPath   string   `toml:"speakers_path"`
	Voices         []string `toml:"voices"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
	OutputDir   string `toml:"output_dir"`
}

// HTTPConfig holds the presentation API settings.
type HTTPConfig struct {
	Addr string `toml:"addr"`
}

// Config is the root configuration structure.
type Config struct {
	NATS       NATSConfig       `toml:"nats"`
	OCR        OCRConfig        `toml:"ocr"`
	Summarizer SummarizerConfig `toml:"summarizer"`
	TTS        TTSConfig        `toml:"tts"`
	Paths      PathsConfig      `toml:"paths"`
	HTTP       HTTPConfig       `toml:"http"`
}

// Enabled reports whether the NATS shell should run.
func (n *NATSConfig) Enabled() bool {
	return n.URL != ""
}

func (n *NATSConfig) applyDefaults() {
	if n.ImageUploadedSubject == "" {
		n.ImageUploadedSubject = defaultImageSubject
	}

	if n.SummaryRequestedSubject == "" {
		n.SummaryRequestedSubject = defaultSummarySubject
	}

	if n.ImageObjectStoreBucket == "" {
		n.ImageObjectStoreBucket = defaultImageBucket
	}

	if n.AudioObjectStoreBucket == "" {
		n.AudioObjectStoreBucket = defaultAudioBucket
	}

	if n.AudioTTLSeconds < 0 {
		n.AudioTTLSeconds = 0
	}
}

// Load loads the configuration for the tara-service through the central configurator.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return finalize(&cfg)
}

// LoadFile loads the configuration from an explicit TOML file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var cfg Config

	err = toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file '%s': %w", path, err)
	}

	return finalize(&cfg)
}

func finalize(cfg *Config) (*Config, error) {
	// A missing .env file is the normal case in production.
	_ = godotenv.Load()

	apiKey := os.Getenv(APIKeyEnv)
	if apiKey != "" {
		cfg.Summarizer.APIKey = apiKey
	}

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate applies defaults and checks the required fields.
// The API key is not required here so that the service can start and report
// summarization failures per request.
func (c *Config) Validate() error {
	if len(c.OCR.Languages) == 0 {
		c.OCR.Languages = []string{"eng", "ind"}
	}

	if c.Summarizer.Model == "" {
		c.Summarizer.Model = defaultSummarizerModel
	}

	if c.Summarizer.BaseURL == "" {
		c.Summarizer.BaseURL = defaultSummarizerBaseURL
	}

	if c.Summarizer.TimeoutSeconds <= 0 {
		c.Summarizer.TimeoutSeconds = defaultSummarizerTimeout
	}

	if c.TTS.BinaryPath == "" {
		c.TTS.BinaryPath = defaultTTSBinary
	}

	if c.TTS.TimeoutSeconds <= 0 {
		c.TTS.TimeoutSeconds = defaultTTSTimeout
	}

	if c.Paths.OutputDir == "" {
		c.Paths.OutputDir = defaultOutputDir
	}

	if c.Paths.BaseLogsDir == "" {
		c.Paths.BaseLogsDir = defaultLogsDir
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = defaultHTTPAddr
	}

	c.NATS.applyDefaults()

	if c.TTS.ModelPath == "" {
		return ErrModelPathEmpty
	}

	if c.TTS.ConfigPath == "" {
		return ErrConfigPathEmpty
	}

	return nil
}
