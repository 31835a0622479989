package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

const (
	// DefaultBaseDir is the base configuration directory name
	DefaultBaseDir = ".rtconsole"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.yaml"
)

// Well-known keys of Context.Extra.
const (
	ExtraTransport  = "transport"   // "webrtc" or "websocket"
	ExtraAudioIn    = "audio_in"    // Ogg/Opus file streamed as the microphone
	ExtraAudioOut   = "audio_out"   // Ogg/Opus file the remote audio is recorded to
	ExtraArchiveDir = "archive_dir" // badger directory for the event archive
	ExtraHistory    = "history"     // in-memory event history bound
)

// Config is the configuration file of a CLI app: a set of named contexts
// and the one currently in use.
type Config struct {
	// AppName is the application name (e.g., "rtconsole")
	AppName string `yaml:"-"`

	// CurrentContext is the name of the currently active context
	CurrentContext string `yaml:"current_context,omitempty"`

	// Contexts is a map of context name to context configuration
	Contexts map[string]*Context `yaml:"contexts,omitempty"`

	configPath string
}

// Context is one realtime endpoint configuration.
type Context struct {
	// Name is the context name
	Name string `json:"name" yaml:"name"`

	// APIKey is the long-lived key used to mint ephemeral credentials. Not
	// needed when TokenURL is set.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Organization and Project are sent as OpenAI-Organization and
	// OpenAI-Project headers.
	Organization string `json:"organization,omitempty" yaml:"organization,omitempty"`
	Project      string `json:"project,omitempty" yaml:"project,omitempty"`

	// BaseURL overrides the Realtime HTTP endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// TokenURL is a backend answering GET with a short-lived credential.
	TokenURL string `json:"token_url,omitempty" yaml:"token_url,omitempty"`

	// Model is the realtime model ID.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// DefaultVoice is the voice requested when minting credentials.
	DefaultVoice string `json:"default_voice,omitempty" yaml:"default_voice,omitempty"`

	// Timeout is the connect timeout in seconds. Zero means none.
	Timeout int `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Extra stores the console settings listed as Extra* constants.
	Extra map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// LoadConfig loads or creates configuration for the specified app
func LoadConfig(appName string) (*Config, error) {
	return LoadConfigWithPath(appName, "")
}

// LoadConfigWithPath loads configuration from a custom path. An empty path
// selects ~/.rtconsole/<app>/config.yaml. A missing file is created empty.
func LoadConfigWithPath(appName, customPath string) (*Config, error) {
	configPath := customPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, DefaultBaseDir, appName, DefaultConfigFile)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := &Config{
		AppName:    appName,
		Contexts:   make(map[string]*Context),
		configPath: configPath,
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Save()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]*Context)
	}
	for name, ctx := range cfg.Contexts {
		ctx.Name = name
	}
	cfg.AppName = appName
	cfg.configPath = configPath

	return cfg, nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Path returns the config file path
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the config directory path
func (c *Config) Dir() string {
	return filepath.Dir(c.configPath)
}

// AddContext adds or replaces a context. The first context added becomes
// the current one.
func (c *Config) AddContext(name string, ctx *Context) error {
	if err := ctx.Validate(); err != nil {
		return err
	}
	ctx.Name = name
	c.Contexts[name] = ctx
	if c.CurrentContext == "" {
		c.CurrentContext = name
	}
	return c.Save()
}

// DeleteContext removes a context
func (c *Config) DeleteContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return c.Save()
}

// UseContext sets the current context
func (c *Config) UseContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	c.CurrentContext = name
	return c.Save()
}

// GetContext returns a specific context
func (c *Config) GetContext(name string) (*Context, error) {
	ctx, ok := c.Contexts[name]
	if !ok {
		return nil, fmt.Errorf("context %q not found", name)
	}
	return ctx, nil
}

// GetCurrentContext returns the current context
func (c *Config) GetCurrentContext() (*Context, error) {
	if c.CurrentContext == "" {
		return nil, fmt.Errorf("no current context set")
	}
	return c.GetContext(c.CurrentContext)
}

// ResolveContext returns the context by name, or current context if name is empty
func (c *Config) ResolveContext(name string) (*Context, error) {
	if name == "" {
		return c.GetCurrentContext()
	}
	return c.GetContext(name)
}

// ListContexts returns all context names, sorted.
func (c *Config) ListContexts() []string {
	names := make([]string, 0, len(c.Contexts))
	for name := range c.Contexts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Validate checks that the context can produce a credential and that its
// settings parse.
func (ctx *Context) Validate() error {
	if ctx.APIKey == "" && ctx.TokenURL == "" {
		return fmt.Errorf("context needs an api_key or a token_url")
	}
	switch t := ctx.GetExtra(ExtraTransport); t {
	case "", "webrtc", "websocket":
	default:
		return fmt.Errorf("unknown transport %q", t)
	}
	if _, err := ctx.History(); err != nil {
		return err
	}
	return nil
}

// History returns the in-memory event history bound; zero means unbounded.
func (ctx *Context) History() (int, error) {
	v := ctx.GetExtra(ExtraHistory)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid history %q: want a non-negative integer", v)
	}
	return n, nil
}

// GetExtra returns an extra value for the context
func (ctx *Context) GetExtra(key string) string {
	if ctx.Extra == nil {
		return ""
	}
	return ctx.Extra[key]
}

// SetExtra sets an extra value for the context. An empty value removes it.
func (ctx *Context) SetExtra(key, value string) {
	if value == "" {
		delete(ctx.Extra, key)
		return
	}
	if ctx.Extra == nil {
		ctx.Extra = make(map[string]string)
	}
	ctx.Extra[key] = value
}

// MaskAPIKey masks the API key for display
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
