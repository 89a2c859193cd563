package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/apresai/voicestudio/internal/llm"
	"github.com/apresai/voicestudio/internal/observability"
	"github.com/apresai/voicestudio/internal/storage"
	"github.com/apresai/voicestudio/internal/tts"
)

// EnvPrefix prefixes every setting read from the environment, e.g.
// VOICESTUDIO_TTS_PROVIDER.
const EnvPrefix = "VOICESTUDIO"

// DefaultFile is looked up in the working directory when no file is given.
const DefaultFile = "voicestudio"

const (
	StorageFile = "file"
	StorageS3   = "s3"
)

// Config is the merged runtime configuration.
type Config struct {
	TTSProvider  string `mapstructure:"tts_provider"`
	TTSModel     string `mapstructure:"tts_model"`
	TTSRetries   int    `mapstructure:"tts_retries"`
	LLMProvider  string `mapstructure:"llm_provider"`
	LLMModel     string `mapstructure:"llm_model"`
	OutputDir    string `mapstructure:"output_dir"`
	Storage      string `mapstructure:"storage"`
	S3Bucket     string `mapstructure:"s3_bucket"`
	CDNBaseURL   string `mapstructure:"cdn_base_url"`
	AWSRegion    string `mapstructure:"aws_region"`
	RulesFile    string `mapstructure:"rules_file"`
	LogLevel     string `mapstructure:"log_level"`
	MCPPort      int    `mapstructure:"mcp_port"`
	MCPMaxTasks  int    `mapstructure:"mcp_max_tasks"`
	AuthTable    string `mapstructure:"auth_table"`
	SecretPrefix string `mapstructure:"secret_prefix"`

	OpenAIAPIKey     string `mapstructure:"openai_api_key"`
	AnthropicAPIKey  string `mapstructure:"anthropic_api_key"`
	GeminiAPIKey     string `mapstructure:"gemini_api_key"`
	ElevenLabsAPIKey string `mapstructure:"elevenlabs_api_key"`
}

var defaults = map[string]any{
	"tts_provider":  "openai",
	"tts_model":     "",
	"tts_retries":   1,
	"llm_provider":  "openai",
	"llm_model":     "",
	"output_dir":    storage.DefaultDir,
	"storage":       StorageFile,
	"s3_bucket":     "",
	"cdn_base_url":  "",
	"aws_region":    "us-east-1",
	"rules_file":    "",
	"log_level":     "info",
	"mcp_port":      8000,
	"mcp_max_tasks": 5,
	"auth_table":    "",
	"secret_prefix": "",
}

// keyEnv maps provider key settings to the unprefixed variables every SDK
// already reads.
var keyEnv = map[string]string{
	"openai_api_key":     "OPENAI_API_KEY",
	"anthropic_api_key":  "ANTHROPIC_API_KEY",
	"gemini_api_key":     "GEMINI_API_KEY",
	"elevenlabs_api_key": "ELEVENLABS_API_KEY",
}

// KeyEnvVars lists the provider key environment variables, sorted.
func KeyEnvVars() []string {
	out := make([]string, 0, len(keyEnv))
	for _, env := range keyEnv {
		out = append(out, env)
	}
	sort.Strings(out)
	return out
}

// Options controls where Load looks.
type Options struct {
	// EnvFile is loaded with override semantics; empty means ".env". A
	// missing file is not an error.
	EnvFile string
	// ConfigFile must exist when set. Empty searches for voicestudio.yaml in
	// the working directory.
	ConfigFile string
	// Flags are bound by name with dashes read as underscores, so
	// --tts-provider sets tts_provider. Only changed flags override.
	Flags *pflag.FlagSet
}

// Load merges defaults, the config file, the environment and flags, in
// increasing precedence, and validates the result.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Overload(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	for k := range keyEnv {
		v.SetDefault(k, "")
	}

	// Environment
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for k, env := range keyEnv {
		if err := v.BindEnv(k, EnvPrefix+"_"+strings.ToUpper(k), env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	// File
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName(DefaultFile)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	// Flags
	if opts.Flags != nil {
		var bindErr error
		opts.Flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if _, known := defaults[key]; !known {
				if _, known = keyEnv[key]; !known {
					return
				}
			}
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.TTSProvider = strings.ToLower(strings.TrimSpace(c.TTSProvider))
	c.LLMProvider = strings.ToLower(strings.TrimSpace(c.LLMProvider))
	c.Storage = strings.ToLower(strings.TrimSpace(c.Storage))
	if c.OutputDir == "" {
		c.OutputDir = storage.DefaultDir
	}
	if c.TTSRetries < 1 {
		c.TTSRetries = 1
	}
	if c.MCPMaxTasks < 1 {
		c.MCPMaxTasks = 1
	}
}

// Validate reports the first invalid setting. Missing provider keys are left
// to MissingKeys so secrets can be loaded after startup.
func (c *Config) Validate() error {
	if !slices.Contains(tts.ProviderNames(), c.TTSProvider) {
		return fmt.Errorf("invalid tts_provider %q: must be one of %s", c.TTSProvider, strings.Join(tts.ProviderNames(), ", "))
	}
	if !slices.Contains(llm.ProviderNames(), c.LLMProvider) {
		return fmt.Errorf("invalid llm_provider %q: must be one of %s", c.LLMProvider, strings.Join(llm.ProviderNames(), ", "))
	}
	switch c.Storage {
	case StorageFile:
	case StorageS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("storage %q requires s3_bucket", StorageS3)
		}
	default:
		return fmt.Errorf("invalid storage %q: must be %s or %s", c.Storage, StorageFile, StorageS3)
	}
	if _, err := observability.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	if c.MCPPort < 1 || c.MCPPort > 65535 {
		return fmt.Errorf("invalid mcp_port %d: must be between 1 and 65535", c.MCPPort)
	}
	return nil
}

// TTSAPIKey returns the key for the configured TTS provider. Google and
// Polly use ambient cloud credentials and have none.
func (c *Config) TTSAPIKey() string {
	switch c.TTSProvider {
	case "openai":
		return c.OpenAIAPIKey
	case "elevenlabs":
		return c.ElevenLabsAPIKey
	case "gemini":
		return c.GeminiAPIKey
	}
	return ""
}

// LLMAPIKey returns the key for the configured chat provider. Nova uses AWS
// credentials.
func (c *Config) LLMAPIKey() string {
	switch c.LLMProvider {
	case "openai":
		return c.OpenAIAPIKey
	case "claude":
		return c.AnthropicAPIKey
	case "gemini":
		return c.GeminiAPIKey
	}
	return ""
}

// MissingKeys lists the environment variables that must be set for the
// configured providers. needLLM is false for runs that never call a chat
// model (manual or rule mode, no translation).
func (c *Config) MissingKeys(needLLM bool) []string {
	missing := map[string]bool{}
	if env := providerKeyEnv(c.TTSProvider); env != "" && c.TTSAPIKey() == "" {
		missing[env] = true
	}
	if needLLM {
		if env := providerKeyEnv(c.LLMProvider); env != "" && c.LLMAPIKey() == "" {
			missing[env] = true
		}
	}
	out := make([]string, 0, len(missing))
	for env := range missing {
		out = append(out, env)
	}
	sort.Strings(out)
	return out
}

// CheckKeys turns MissingKeys into an error.
func (c *Config) CheckKeys(needLLM bool) error {
	missing := c.MissingKeys(needLLM)
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required environment variable(s): %s\nSet them in .env or the environment", strings.Join(missing, ", "))
}

func providerKeyEnv(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "claude":
		return "ANTHROPIC_API_KEY"
	case "gemini":
		return "GEMINI_API_KEY"
	case "elevenlabs":
		return "ELEVENLABS_API_KEY"
	}
	return ""
}

// TTSOptions builds provider options from the config.
func (c *Config) TTSOptions() tts.Options {
	return tts.Options{
		APIKey:  c.TTSAPIKey(),
		Model:   c.TTSModel,
		Region:  c.AWSRegion,
		Retries: c.TTSRetries,
	}
}

// LLMConfig builds the chat provider config.
func (c *Config) LLMConfig() llm.Config {
	return llm.Config{
		Provider: c.LLMProvider,
		Model:    c.LLMModel,
		APIKey:   c.LLMAPIKey(),
		Region:   c.AWSRegion,
	}
}

// LLMReady reports whether the chat provider has what it needs, so optional
// LLM features can be enabled without failing the run.
func (c *Config) LLMReady() bool {
	return len(c.MissingKeys(true)) == len(c.MissingKeys(false))
}

// Key returns the provider key held for an environment variable name.
func (c *Config) Key(env string) string {
	switch env {
	case "OPENAI_API_KEY":
		return c.OpenAIAPIKey
	case "ANTHROPIC_API_KEY":
		return c.AnthropicAPIKey
	case "GEMINI_API_KEY":
		return c.GeminiAPIKey
	case "ELEVENLABS_API_KEY":
		return c.ElevenLabsAPIKey
	}
	return ""
}

// SetKey assigns a provider key by its environment variable name and reports
// whether env names one.
func (c *Config) SetKey(env, value string) bool {
	switch env {
	case "OPENAI_API_KEY":
		c.OpenAIAPIKey = value
	case "ANTHROPIC_API_KEY":
		c.AnthropicAPIKey = value
	case "GEMINI_API_KEY":
		c.GeminiAPIKey = value
	case "ELEVENLABS_API_KEY":
		c.ElevenLabsAPIKey = value
	default:
		return false
	}
	return true
}
