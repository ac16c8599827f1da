// Package config loads settings from flags, the environment, an optional
// YAML file and a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "PANELCAST"

// Config is the resolved configuration for one process.
type Config struct {
	WorkDir  string         `mapstructure:"work_dir"`
	Script   ScriptConfig   `mapstructure:"script"`
	TTS      TTSConfig      `mapstructure:"tts"`
	Publish  PublishConfig  `mapstructure:"publish"`
	Metadata MetadataConfig `mapstructure:"metadata"`
	Log      LogConfig      `mapstructure:"log"`
	Secrets  SecretsConfig  `mapstructure:"secrets"`
	FFmpeg   string         `mapstructure:"ffmpeg"`
}

type ScriptConfig struct {
	Model           string `mapstructure:"model"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	GeminiAPIKey    string `mapstructure:"gemini_api_key"`
	GeminiBaseURL   string `mapstructure:"gemini_base_url"`
}

type TTSConfig struct {
	Provider          string `mapstructure:"provider"`
	ElevenLabsAPIKey  string `mapstructure:"elevenlabs_api_key"`
	ElevenLabsBaseURL string `mapstructure:"elevenlabs_base_url"`
}

type PublishConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
	AuthURL      string `mapstructure:"auth_url"`
	TokenURL     string `mapstructure:"token_url"`
	UploadURL    string `mapstructure:"upload_url"`
	Scope        string `mapstructure:"scope"`
	Status       string `mapstructure:"status"`
	Explicit     bool   `mapstructure:"explicit"`
}

type MetadataConfig struct {
	Artist string `mapstructure:"artist"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SecretsConfig struct {
	// Prefix enables AWS Secrets Manager lookups for missing API keys,
	// e.g. "/panelcast/".
	Prefix string `mapstructure:"prefix"`
	Region string `mapstructure:"region"`
}

// vendorEnv maps config keys to the variable names the vendors document.
var vendorEnv = map[string]string{
	"script.anthropic_api_key": "ANTHROPIC_API_KEY",
	"script.gemini_api_key":    "GEMINI_API_KEY",
	"tts.elevenlabs_api_key":   "ELEVENLABS_API_KEY",
	"publish.client_id":        "PODBEAN_CLIENT_ID",
	"publish.client_secret":    "PODBEAN_CLIENT_SECRET",
	"publish.redirect_url":     "PODBEAN_REDIRECT_URL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("work_dir", "audio_clips")
	v.SetDefault("ffmpeg", "ffmpeg")
	v.SetDefault("script.model", "haiku")
	v.SetDefault("tts.provider", "elevenlabs")
	v.SetDefault("publish.scope", "episode_publish")
	v.SetDefault("publish.status", "publish")
	v.SetDefault("publish.explicit", false)
	v.SetDefault("metadata.artist", "AI Podcast Generator")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("secrets.region", "")
}

// New builds a viper instance with defaults and environment bindings. A
// .env file in the working directory is loaded first if present; it never
// overrides variables already set.
func New() *viper.Viper {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range vendorEnv {
		_ = v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}
	return v
}

// Load reads configFile (optional) into v and returns the resolved Config.
// Without an explicit file, panelcast.yaml in the working directory is used
// when it exists.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("panelcast")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.WorkDir) == "" {
		return errors.New("work_dir must not be empty")
	}
	switch c.Publish.Status {
	case "publish", "draft":
	default:
		return fmt.Errorf("publish.status %q: must be publish or draft", c.Publish.Status)
	}
	return nil
}

// MissingKeys lists the credentials the chosen model and provider need but
// do not have.
func (c *Config) MissingKeys() []string {
	var missing []string
	switch {
	case strings.HasPrefix(c.Script.Model, "gemini"):
		if c.Script.GeminiAPIKey == "" {
			missing = append(missing, "GEMINI_API_KEY")
		}
	case c.Script.Model == "haiku" || c.Script.Model == "sonnet":
		if c.Script.AnthropicAPIKey == "" {
			missing = append(missing, "ANTHROPIC_API_KEY")
		}
	}
	if c.TTS.Provider == "elevenlabs" && c.TTS.ElevenLabsAPIKey == "" {
		missing = append(missing, "ELEVENLABS_API_KEY")
	}
	return missing
}

// PublishReady reports whether OAuth client credentials are configured.
func (c *Config) PublishReady() error {
	var missing []string
	if c.Publish.ClientID == "" {
		missing = append(missing, "PODBEAN_CLIENT_ID")
	}
	if c.Publish.ClientSecret == "" {
		missing = append(missing, "PODBEAN_CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("publishing needs %s", strings.Join(missing, " and "))
	}
	return nil
}
