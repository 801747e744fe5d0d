// Package config provides configuration management for the Relay bot
// framework.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the bot's full configuration tree.
type Config struct {
	Bot      BotConfig      `toml:"bot"`
	API      APIConfig      `toml:"api"`
	MCP      MCPConfig      `toml:"mcp"`
	NLU      NLUConfig      `toml:"nlu"`
	Storage  StorageConfig  `toml:"storage"`
	Logging  LoggingConfig  `toml:"logging"`
	Security SecurityConfig `toml:"security"`
}

// BotConfig contains service-level settings.
type BotConfig struct {
	Name            string `toml:"name"`
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	DataDir         string `toml:"data_dir"`
	BitsDir         string `toml:"bits_dir"`
	PIDFile         string `toml:"pid_file"`
	ShutdownTimeout int    `toml:"shutdown_timeout_seconds"`
	MaxRequestSize  int64  `toml:"max_request_size_bytes"`
	NLUMinLength    int    `toml:"nlu_min_length"`
	SceneTimeoutSec int    `toml:"scene_timeout_seconds"`
}

// APIConfig contains the HTTP message adapter's settings.
type APIConfig struct {
	Enabled        bool     `toml:"enabled"`
	APIKey         string   `toml:"api_key"`
	CallbackURL    string   `toml:"callback_url"`
	RateLimit      int      `toml:"rate_limit_per_minute"`
	AllowedOrigins []string `toml:"allowed_origins"`
	RequestTimeout int      `toml:"request_timeout_seconds"`
}

// MCPConfig contains MCP message adapter settings.
type MCPConfig struct {
	Enabled bool `toml:"enabled"`
}

// NLUConfig contains NLU adapter settings.
type NLUConfig struct {
	Provider    string `toml:"provider"`
	APIKey      string `toml:"api_key"`
	Model       string `toml:"model"`
	TimeoutSecs int    `toml:"timeout_seconds"`
}

// StorageConfig contains storage adapter settings.
type StorageConfig struct {
	Backend          string `toml:"backend"` // "filestore" or "chromemstore"
	Path             string `toml:"path"`
	SaveIntervalSecs int    `toml:"save_interval_seconds"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string      `toml:"level"`
	Format     string      `toml:"format"`
	Output     StringSlice `toml:"output"`
	TimeFormat string      `toml:"time_format"`
	MaxSizeMB  int         `toml:"max_size_mb"`
	MaxBackups int         `toml:"max_backups"`
	MaxAgeDays int         `toml:"max_age_days"`
	Compress   bool        `toml:"compress"`
}

// StringSlice is a custom type that can unmarshal from either a string or []string.
type StringSlice []string

// UnmarshalTOML implements toml.Unmarshaler for flexible config parsing.
func (s *StringSlice) UnmarshalTOML(data interface{}) error {
	switch v := data.(type) {
	case string:
		*s = []string{v}
	case []interface{}:
		result := make([]string, len(v))
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return fmt.Errorf("expected string in array, got %T", item)
			}
			result[i] = str
		}
		*s = result
	default:
		return fmt.Errorf("expected string or array, got %T", data)
	}
	return nil
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	TLSEnabled  bool   `toml:"tls_enabled"`
	TLSCertFile string `toml:"tls_cert_file"`
	TLSKeyFile  string `toml:"tls_key_file"`
	CORSEnabled bool   `toml:"cors_enabled"`
}

// DefaultConfig returns the default configuration with all values set.
// Environment variables BOT_HOST and BOT_PORT can override defaults.
func DefaultConfig() *Config {
	dataDir := DefaultDataDir()

	host := "127.0.0.1"
	if envHost := os.Getenv("BOT_HOST"); envHost != "" {
		host = envHost
	}

	port := 8420
	if envPort := os.Getenv("BOT_PORT"); envPort != "" {
		if p, err := strconv.Atoi(envPort); err == nil {
			port = p
		}
	}

	return &Config{
		Bot: BotConfig{
			Name:            "relay",
			Host:            host,
			Port:            port,
			DataDir:         dataDir,
			BitsDir:         filepath.Join(dataDir, "bits"),
			PIDFile:         filepath.Join(dataDir, "relay.pid"),
			ShutdownTimeout: 30,
			MaxRequestSize:  10 * 1024 * 1024,
			NLUMinLength:    3,
			SceneTimeoutSec: 120,
		},
		API: APIConfig{
			Enabled:        true,
			APIKey:         "",
			RateLimit:      100,
			AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
			RequestTimeout: 60,
		},
		MCP: MCPConfig{
			Enabled: false,
		},
		NLU: NLUConfig{
			Provider:    "genai",
			APIKey:      os.Getenv("GEMINI_API_KEY"),
			Model:       "gemini-1.5-flash",
			TimeoutSecs: 30,
		},
		Storage: StorageConfig{
			Backend:          "filestore",
			Path:             filepath.Join(dataDir, "data"),
			SaveIntervalSecs: 60,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     StringSlice{"file"},
			TimeFormat: "15:04:05.000",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Security: SecurityConfig{
			TLSEnabled:  false,
			TLSCertFile: "",
			TLSKeyFile:  "",
			CORSEnabled: true,
		},
	}
}

// DefaultDataDir returns the default data directory based on OS.
func DefaultDataDir() string {
	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "relay")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "AppData", "Roaming", "relay")
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "relay")
	default: // linux and others
		xdgData := os.Getenv("XDG_DATA_HOME")
		if xdgData != "" {
			return filepath.Join(xdgData, "relay")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".relay")
	}
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDataDir(), "config.toml")
}

// Load loads configuration from a file, merging with defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	if _, err := toml.Decode(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.expandPaths()
	return cfg, nil
}

// LoadFromString loads configuration from a TOML string, merging with defaults.
func LoadFromString(tomlStr string) (*Config, error) {
	cfg := DefaultConfig()

	expanded := os.ExpandEnv(tomlStr)

	if _, err := toml.Decode(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parse config string: %w", err)
	}

	cfg.expandPaths()
	return cfg, nil
}

// expandPaths expands tilde in path fields.
func (c *Config) expandPaths() {
	home, _ := os.UserHomeDir()

	expandTilde := func(path string) string {
		if strings.HasPrefix(path, "~/") {
			return filepath.Join(home, path[2:])
		}
		return path
	}

	c.Bot.DataDir = expandTilde(c.Bot.DataDir)
	c.Bot.BitsDir = expandTilde(c.Bot.BitsDir)
	c.Bot.PIDFile = expandTilde(c.Bot.PIDFile)
	c.Storage.Path = expandTilde(c.Storage.Path)
	c.Security.TLSCertFile = expandTilde(c.Security.TLSCertFile)
	c.Security.TLSKeyFile = expandTilde(c.Security.TLSKeyFile)
}

// ApplyEnv overlays BOT_-prefixed environment variables onto cfg. It runs
// before ApplyFlags, giving the precedence chain flags > env > file >
// defaults.
func ApplyEnv(cfg *Config, prefix string) {
	if v := os.Getenv(prefix + "NAME"); v != "" {
		cfg.Bot.Name = v
	}
	if v := os.Getenv(prefix + "HOST"); v != "" {
		cfg.Bot.Host = v
	}
	if v := os.Getenv(prefix + "PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Bot.Port = p
		}
	}
	if v := os.Getenv(prefix + "DATA_DIR"); v != "" {
		cfg.Bot.DataDir = v
	}
	if v := os.Getenv(prefix + "BITS_DIR"); v != "" {
		cfg.Bot.BitsDir = v
	}
	if v := os.Getenv(prefix + "API_KEY"); v != "" {
		cfg.API.APIKey = v
	}
}

// ApplyFlags overlays parsed command-line flags onto cfg, taking highest
// precedence. fs must already have been parsed by the caller.
func ApplyFlags(cfg *Config, fs *flag.FlagSet) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Bot.Host = f.Value.String()
		case "port":
			if p, err := strconv.Atoi(f.Value.String()); err == nil {
				cfg.Bot.Port = p
			}
		case "data-dir":
			cfg.Bot.DataDir = f.Value.String()
		case "bits-dir":
			cfg.Bot.BitsDir = f.Value.String()
		}
	})
}

// Save saves the configuration to a file in TOML format.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	return nil
}

// WriteExampleConfig writes a commented default relay.toml.
func WriteExampleConfig(path string) error {
	example := `# relay configuration file
# All values shown are defaults - uncomment and modify as needed

[bot]
name = "relay"
host = "127.0.0.1"
port = 8420
# data_dir = "~/.relay"
# bits_dir = "~/.relay/bits"
shutdown_timeout_seconds = 30
max_request_size_bytes = 10485760
nlu_min_length = 3
scene_timeout_seconds = 120

[api]
enabled = true
api_key = ""
callback_url = ""
rate_limit_per_minute = 100
allowed_origins = ["http://localhost:*", "http://127.0.0.1:*"]
request_timeout_seconds = 60

[mcp]
enabled = false

[nlu]
provider = "genai"
api_key = "${GEMINI_API_KEY}"
model = "gemini-1.5-flash"
timeout_seconds = 30

[storage]
backend = "filestore"
# path = "~/.relay/data"
save_interval_seconds = 60

[logging]
level = "info"
format = "text"
output = ["file"]
time_format = "15:04:05.000"
max_size_mb = 100
max_backups = 5
max_age_days = 30
compress = true

[security]
tls_enabled = false
# tls_cert_file = "/path/to/cert.pem"
# tls_key_file = "/path/to/key.pem"
cors_enabled = true
`

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	return os.WriteFile(path, []byte(example), 0644)
}

// Address returns the full address string for the HTTP server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Bot.Host, c.Bot.Port)
}

// LogPath returns the path to the bot's log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Bot.DataDir, "logs", "relay.log")
}

// PIDPath returns the path to the PID file.
func (c *Config) PIDPath() string {
	if c.Bot.PIDFile != "" {
		return c.Bot.PIDFile
	}
	return filepath.Join(c.Bot.DataDir, "relay.pid")
}

// EnsureDirectories creates all necessary directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Bot.DataDir,
		c.Bot.BitsDir,
		c.Storage.Path,
		filepath.Dir(c.LogPath()),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	if c.Bot.Port < 1 || c.Bot.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Bot.Port)
	}

	if c.Bot.ShutdownTimeout < 1 {
		return fmt.Errorf("shutdown_timeout_seconds must be at least 1")
	}

	if c.API.RateLimit < 0 {
		return fmt.Errorf("rate_limit_per_minute cannot be negative")
	}

	if c.Security.TLSEnabled {
		if c.Security.TLSCertFile == "" || c.Security.TLSKeyFile == "" {
			return fmt.Errorf("TLS enabled but cert/key files not specified")
		}
	}

	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c

	clone.API.AllowedOrigins = make([]string, len(c.API.AllowedOrigins))
	copy(clone.API.AllowedOrigins, c.API.AllowedOrigins)

	clone.Logging.Output = make(StringSlice, len(c.Logging.Output))
	copy(clone.Logging.Output, c.Logging.Output)

	return &clone
}
