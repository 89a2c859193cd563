package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads and restores it after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for k := range defaults {
		t.Setenv(EnvPrefix+"_"+strings.ToUpper(k), "")
		os.Unsetenv(EnvPrefix + "_" + strings.ToUpper(k))
	}
	for k, env := range keyEnv {
		t.Setenv(env, "")
		os.Unsetenv(env)
		t.Setenv(EnvPrefix+"_"+strings.ToUpper(k), "")
		os.Unsetenv(EnvPrefix + "_" + strings.ToUpper(k))
	}
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Options{EnvFile: noEnvFile(t)})
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.TTSProvider)
	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, "output_audio", cfg.OutputDir)
	assert.Equal(t, StorageFile, cfg.Storage)
	assert.Equal(t, 1, cfg.TTSRetries)
	assert.Equal(t, 8000, cfg.MCPPort)
	assert.Equal(t, 5, cfg.MCPMaxTasks)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestEnvFileOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("OPENAI_API_KEY=sk-test\nVOICESTUDIO_LOG_LEVEL=debug\n"), 0o644))

	cfg, err := Load(Options{EnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.OpenAIAPIKey)
	assert.Equal(t, "sk-test", cfg.TTSAPIKey())
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestConfigFileThenEnvThenFlags(t *testing.T) {
	clearEnv(t)
	file := filepath.Join(t.TempDir(), "studio.yaml")
	require.NoError(t, os.WriteFile(file, []byte("tts_provider: elevenlabs\nllm_provider: claude\nmcp_port: 9000\n"), 0o644))
	t.Setenv("VOICESTUDIO_LLM_PROVIDER", "gemini")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("tts-provider", "openai", "")
	flags.Int("mcp-port", 8000, "")
	flags.String("unrelated", "", "")
	require.NoError(t, flags.Parse([]string{"--tts-provider", "polly"}))

	cfg, err := Load(Options{EnvFile: noEnvFile(t), ConfigFile: file, Flags: flags})
	require.NoError(t, err)
	assert.Equal(t, "polly", cfg.TTSProvider)
	assert.Equal(t, "gemini", cfg.LLMProvider)
	assert.Equal(t, 9000, cfg.MCPPort)
}

func TestMissingConfigFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(Options{EnvFile: noEnvFile(t), ConfigFile: filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := Config{TTSProvider: "openai", LLMProvider: "openai", Storage: StorageFile, LogLevel: "info", MCPPort: 8000}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"tts provider", func(c *Config) { c.TTSProvider = "siri" }, "tts_provider"},
		{"llm provider", func(c *Config) { c.LLMProvider = "eliza" }, "llm_provider"},
		{"storage", func(c *Config) { c.Storage = "ftp" }, "storage"},
		{"s3 bucket", func(c *Config) { c.Storage = StorageS3 }, "s3_bucket"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"port", func(c *Config) { c.MCPPort = 0 }, "mcp_port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			assert.ErrorContains(t, c.Validate(), tt.want)
		})
	}
}

func TestMissingKeys(t *testing.T) {
	c := Config{TTSProvider: "elevenlabs", LLMProvider: "claude"}
	assert.Equal(t, []string{"ELEVENLABS_API_KEY"}, c.MissingKeys(false))
	assert.Equal(t, []string{"ANTHROPIC_API_KEY", "ELEVENLABS_API_KEY"}, c.MissingKeys(true))

	c = Config{TTSProvider: "polly", LLMProvider: "nova"}
	assert.Empty(t, c.MissingKeys(true))
	assert.NoError(t, c.CheckKeys(true))

	c = Config{TTSProvider: "openai", LLMProvider: "openai"}
	err := c.CheckKeys(true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestOptionBuilders(t *testing.T) {
	c := Config{TTSProvider: "gemini", TTSModel: "m", TTSRetries: 3, LLMProvider: "claude", AWSRegion: "eu-west-1", GeminiAPIKey: "g", AnthropicAPIKey: "a"}
	o := c.TTSOptions()
	assert.Equal(t, "g", o.APIKey)
	assert.Equal(t, 3, o.Retries)
	assert.Equal(t, "eu-west-1", o.Region)

	l := c.LLMConfig()
	assert.Equal(t, "claude", l.Provider)
	assert.Equal(t, "a", l.APIKey)
	assert.Len(t, KeyEnvVars(), 4)
}

func TestKeysByEnvName(t *testing.T) {
	var c Config
	for _, env := range KeyEnvVars() {
		assert.True(t, c.SetKey(env, "k-"+env))
		assert.Equal(t, "k-"+env, c.Key(env))
	}
	assert.False(t, c.SetKey("PATH", "x"))
	assert.Empty(t, c.Key("PATH"))
	assert.Equal(t, "k-ANTHROPIC_API_KEY", c.AnthropicAPIKey)
}

func TestLLMReady(t *testing.T) {
	c := Config{TTSProvider: "openai", LLMProvider: "claude"}
	assert.False(t, c.LLMReady())
	c.AnthropicAPIKey = "a"
	assert.True(t, c.LLMReady())

	c = Config{TTSProvider: "polly", LLMProvider: "nova"}
	assert.True(t, c.LLMReady())
}
