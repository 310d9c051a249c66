// Package config loads spekta settings from a YAML file overlaid with
// SPEKTA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/spektasoft/spekta-cli/unifiedllm"
)

// Config holds every user-tunable setting.
type Config struct {
	Provider         string  `yaml:"provider" env:"SPEKTA_PROVIDER" validate:"required,oneof=anthropic openai gemini groq mistral ollama openrouter deepseek"`
	Model            string  `yaml:"model,omitempty" env:"SPEKTA_MODEL"`
	APIKey           string  `yaml:"api_key,omitempty" env:"SPEKTA_API_KEY"`
	SessionDir       string  `yaml:"session_dir" env:"SPEKTA_SESSION_DIR" validate:"required"`
	SystemPromptFile string  `yaml:"system_prompt_file,omitempty" env:"SPEKTA_SYSTEM_PROMPT"`
	MaxAutoRounds    int     `yaml:"max_auto_rounds" env:"SPEKTA_MAX_AUTO_ROUNDS" validate:"gte=0,lte=200"`
	Temperature      float64 `yaml:"temperature" env:"SPEKTA_TEMPERATURE" validate:"gte=0,lte=2"`
	MaxTokens        int     `yaml:"max_tokens" env:"SPEKTA_MAX_TOKENS" validate:"gt=0"`
	ReasoningEffort  string  `yaml:"reasoning_effort,omitempty" env:"SPEKTA_REASONING_EFFORT" validate:"omitempty,oneof=low medium high"`
	Debug            bool    `yaml:"debug" env:"SPEKTA_DEBUG"`
	LogFile          string  `yaml:"log_file" env:"SPEKTA_LOG_FILE"`
}

// providerKeyEnv lists the conventional credential variable per provider,
// consulted when no key is configured explicitly.
var providerKeyEnv = map[string]string{
	"anthropic":  "ANTHROPIC_API_KEY",
	"openai":     "OPENAI_API_KEY",
	"gemini":     "GEMINI_API_KEY",
	"groq":       "GROQ_API_KEY",
	"mistral":    "MISTRAL_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
	"deepseek":   "DEEPSEEK_API_KEY",
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Provider:      "openai",
		SessionDir:    filepath.Join(homeDir(), ".spekta", "sessions"),
		MaxAutoRounds: 25,
		Temperature:   0.7,
		MaxTokens:     8192,
		LogFile:       filepath.Join(homeDir(), ".spekta", "logs", "spekta.log"),
	}
}

// DefaultPath returns the config file location, usually
// ~/.config/spekta/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(homeDir(), ".spekta", "config.yaml")
	}
	return filepath.Join(dir, "spekta", "config.yaml")
}

// Load builds a Config from defaults, the YAML file at path (optional), and
// the environment, in that order of increasing precedence. The result is
// validated; a missing credential is not an error here, see
// RequireCredential.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, configError(fmt.Sprintf("parse %s", path), err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, configError(fmt.Sprintf("read %s", path), err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, configError("read environment", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize fills the credential from the provider's conventional variable
// and expands a leading ~ in paths.
func (c *Config) normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.APIKey == "" {
		if name, ok := providerKeyEnv[c.Provider]; ok {
			c.APIKey = os.Getenv(name)
		}
	}
	c.SessionDir = expandHome(c.SessionDir)
	c.SystemPromptFile = expandHome(c.SystemPromptFile)
	c.LogFile = expandHome(c.LogFile)
}

// Overrides carries command-line settings; empty fields leave the loaded
// value alone.
type Overrides struct {
	Provider   string
	Model      string
	SessionDir string
	Debug      bool
}

// Apply layers o on top of c and re-validates. A credential picked up from
// the previous provider's variable does not follow a provider switch.
func (c *Config) Apply(o Overrides) error {
	if o.Provider != "" && !strings.EqualFold(o.Provider, c.Provider) {
		if name, ok := providerKeyEnv[c.Provider]; ok && c.APIKey != "" && c.APIKey == os.Getenv(name) {
			c.APIKey = ""
		}
		c.Provider = o.Provider
		if o.Model == "" {
			c.Model = ""
		}
	}
	if o.Model != "" {
		c.Model = o.Model
	}
	if o.SessionDir != "" {
		c.SessionDir = o.SessionDir
	}
	if o.Debug {
		c.Debug = true
	}
	c.normalize()
	return c.Validate()
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
			}
			return configError("invalid settings: "+strings.Join(msgs, "; "), nil)
		}
		return configError("invalid settings", err)
	}
	return nil
}

// RequireCredential fails with a ConfigurationError when no API key is set.
// Ollama runs locally and needs none.
func (c *Config) RequireCredential() error {
	if c.APIKey != "" || c.Provider == "ollama" {
		return nil
	}
	hint := "SPEKTA_API_KEY"
	if name, ok := providerKeyEnv[c.Provider]; ok {
		hint += " or " + name
	}
	return configError(fmt.Sprintf("no API key for provider %s (set %s, or api_key in %s)", c.Provider, hint, DefaultPath()), nil)
}

// SystemPrompt returns the contents of the configured prompt file, or
// fallback when none is configured.
func (c *Config) SystemPrompt(fallback string) (string, error) {
	if c.SystemPromptFile == "" {
		return fallback, nil
	}
	data, err := os.ReadFile(c.SystemPromptFile)
	if err != nil {
		return "", configError("read system prompt", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save writes cfg as YAML to path via a temporary file and rename. The
// credential is never written.
func Save(path string, cfg *Config) error {
	out := *cfg
	out.APIKey = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

func configError(msg string, cause error) error {
	return &unifiedllm.ConfigurationError{SDKError: unifiedllm.SDKError{Message: msg, Cause: cause}}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func expandHome(p string) string {
	if p == "~" {
		return homeDir()
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(homeDir(), p[2:])
	}
	return p
}
