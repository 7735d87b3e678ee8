package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all OpenHire agent environment
// variables.
const EnvPrefix = "OPENHIRE_"

// Preset is one debrief writing style.
type Preset struct {
	Description  string `yaml:"description"`
	Model        string `yaml:"model"`
	SystemPrompt string `yaml:"system_prompt"`
	UserTemplate string `yaml:"user_template"`
}

// Debrief configures the post-interview debrief generation.
type Debrief struct {
	Model   string            `yaml:"model"`
	Presets map[string]Preset `yaml:"presets"`
}

// Config holds all agent configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config
// file.
type Config struct {
	ControlURL         string `yaml:"control_url"`
	InterviewID        string `yaml:"interview_id"`
	CandidateID        string `yaml:"candidate_id"`
	JobDescriptionPath string `yaml:"job_description_path"`
	ResumePath         string `yaml:"resume_path"`

	DBPath        string `yaml:"db_path"`
	AudioDir      string `yaml:"audio_dir"`
	TranscriptDir string `yaml:"transcript_dir"`
	ListenAddr    string `yaml:"listen_addr"`

	CaptureInterval string `yaml:"capture_interval"`
	CaptureDevice   string `yaml:"capture_device"`
	BackendURL      string `yaml:"backend_url"`
	StorageBucket   string `yaml:"storage_bucket"`

	SilenceTimeout string `yaml:"silence_timeout"`
	MicSampleRate  int    `yaml:"mic_sample_rate"`
	MicSampleRates []int  `yaml:"mic_sample_rates"`

	Debrief Debrief `yaml:"debrief"`

	GDriveFolderID        string `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string `yaml:"google_credentials_file"`

	// Secrets — env vars only, never serialized to YAML.
	DeepgramAPIKey  string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
	GeminiAPIKey    string `yaml:"-"`
	BackendAPIKey   string `yaml:"-"`
}

func defaults() Config {
	return Config{
		ControlURL:            "ws://localhost:3000/interview",
		DBPath:                "data/openhire-agent.db",
		AudioDir:              "data/audio",
		TranscriptDir:         "data/transcripts",
		ListenAddr:            "127.0.0.1:8091",
		CaptureInterval:       "120s",
		CaptureDevice:         "/dev/video0",
		StorageBucket:         "interview-media",
		SilenceTimeout:        "8s",
		MicSampleRate:         16000,
		MicSampleRates:        []int{48000, 44100, 32000, 24000},
		GoogleCredentialsFile: "./service-account.json",
		Debrief: Debrief{
			Model: "openai/gpt-4o-mini",
		},
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the
// result. It returns the config, any validation warnings, and an error
// if the file exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// ParsedSilenceTimeout returns SilenceTimeout as a time.Duration,
// falling back to 8s if the value is invalid.
func (c *Config) ParsedSilenceTimeout() time.Duration {
	d, err := time.ParseDuration(c.SilenceTimeout)
	if err != nil {
		return 8 * time.Second
	}
	return d
}

// ParsedCaptureInterval returns CaptureInterval as a time.Duration,
// falling back to two minutes if the value is invalid.
func (c *Config) ParsedCaptureInterval() time.Duration {
	d, err := time.ParseDuration(c.CaptureInterval)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// APIKeyFor maps an LLM provider name to its configured secret.
func (c *Config) APIKeyFor(provider string) string {
	switch provider {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	case "gemini":
		return c.GeminiAPIKey
	default:
		return ""
	}
}

// SampleRateCandidates returns a deduplicated ordered list of sample
// rates to try: preferred rate first, then configured alternatives,
// then defaults.
func (c *Config) SampleRateCandidates() []int {
	hardcoded := []int{16000, 48000, 44100, 32000, 24000}

	combined := make([]int, 0, 1+len(c.MicSampleRates)+len(hardcoded))
	combined = append(combined, c.MicSampleRate)
	combined = append(combined, c.MicSampleRates...)
	combined = append(combined, hardcoded...)

	seen := make(map[int]struct{}, len(combined))
	result := make([]int, 0, len(combined))
	for _, rate := range combined {
		if rate <= 0 {
			continue
		}
		if _, ok := seen[rate]; ok {
			continue
		}
		seen[rate] = struct{}{}
		result = append(result, rate)
	}
	return result
}

func applyEnvOverrides(cfg *Config) {
	overrides := map[string]*string{
		"CONTROL_URL":             &cfg.ControlURL,
		"INTERVIEW_ID":            &cfg.InterviewID,
		"CANDIDATE_ID":            &cfg.CandidateID,
		"JOB_DESCRIPTION_PATH":    &cfg.JobDescriptionPath,
		"RESUME_PATH":             &cfg.ResumePath,
		"DB_PATH":                 &cfg.DBPath,
		"AUDIO_DIR":               &cfg.AudioDir,
		"TRANSCRIPT_DIR":          &cfg.TranscriptDir,
		"LISTEN_ADDR":             &cfg.ListenAddr,
		"CAPTURE_INTERVAL":        &cfg.CaptureInterval,
		"CAPTURE_DEVICE":          &cfg.CaptureDevice,
		"BACKEND_URL":             &cfg.BackendURL,
		"STORAGE_BUCKET":          &cfg.StorageBucket,
		"SILENCE_TIMEOUT":         &cfg.SilenceTimeout,
		"DEBRIEF_MODEL":           &cfg.Debrief.Model,
		"GDRIVE_FOLDER_ID":        &cfg.GDriveFolderID,
		"GOOGLE_CREDENTIALS_FILE": &cfg.GoogleCredentialsFile,
	}
	for key, dst := range overrides {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv(EnvPrefix + "MIC_SAMPLE_RATE"); v != "" {
		if rate, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && rate > 0 {
			cfg.MicSampleRate = rate
		}
	}
	if v := os.Getenv(EnvPrefix + "MIC_SAMPLE_RATES"); v != "" {
		cfg.MicSampleRates = parseSampleRates(v)
	}
}

func loadSecrets(cfg *Config) {
	cfg.DeepgramAPIKey = os.Getenv(EnvPrefix + "DEEPGRAM_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv(EnvPrefix + "ANTHROPIC_API_KEY")
	cfg.GeminiAPIKey = os.Getenv(EnvPrefix + "GEMINI_API_KEY")
	cfg.BackendAPIKey = os.Getenv(EnvPrefix + "BACKEND_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.InterviewID == "" {
		warnings = append(warnings, "Interview id not configured. Set "+EnvPrefix+"INTERVIEW_ID or interview_id in the config file.")
	}
	if cfg.DeepgramAPIKey == "" {
		warnings = append(warnings, "Deepgram API key not configured. Voice answers are disabled. Set "+EnvPrefix+"DEEPGRAM_API_KEY.")
	}
	if cfg.OpenAIAPIKey == "" && cfg.AnthropicAPIKey == "" && cfg.GeminiAPIKey == "" {
		warnings = append(warnings, "No LLM API key configured. Post-interview debriefs are disabled.")
	}
	if cfg.BackendURL == "" {
		warnings = append(warnings, "Backend URL not configured. Captured frames stay in the local database only. Set "+EnvPrefix+"BACKEND_URL.")
	}
	if _, err := time.ParseDuration(cfg.SilenceTimeout); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid silence_timeout %q. Using default 8s.", cfg.SilenceTimeout))
	}
	if _, err := time.ParseDuration(cfg.CaptureInterval); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid capture_interval %q. Using default 120s.", cfg.CaptureInterval))
	}

	return warnings
}

func parseSampleRates(raw string) []int {
	parts := strings.Split(raw, ",")
	seen := make(map[int]struct{}, len(parts))
	result := make([]int, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		rate, err := strconv.Atoi(trimmed)
		if err != nil || rate <= 0 {
			continue
		}
		if _, ok := seen[rate]; ok {
			continue
		}
		seen[rate] = struct{}{}
		result = append(result, rate)
	}

	return result
}
