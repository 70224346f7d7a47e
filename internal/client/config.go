package client

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

const (
	DefaultBatchSize     = 100
	DefaultMaxInputBytes = 1 << 20
	DefaultStateBackend  = "file"
	DefaultLogFileName   = "sessionsync-hook.log"

	EnvAPIKey         = "SESSIONSYNC_API_KEY"
	EnvAPIURL         = "SESSIONSYNC_API_URL"
	EnvAutoSync       = "SESSIONSYNC_AUTO_SYNC"
	EnvSyncToolCalls  = "SESSIONSYNC_SYNC_TOOL_CALLS"
	EnvSyncThinking   = "SESSIONSYNC_SYNC_THINKING"
	EnvRedact         = "SESSIONSYNC_REDACT"
	EnvRealtimeEvents = "SESSIONSYNC_REALTIME_EVENTS"
	EnvStateBackend   = "SESSIONSYNC_STATE_BACKEND"
	EnvStateDir       = "SESSIONSYNC_STATE_DIR"
	EnvTimeout        = "SESSIONSYNC_TIMEOUT"
	EnvCompress       = "SESSIONSYNC_COMPRESS"
	EnvDebug          = "SESSIONSYNC_DEBUG"
	EnvLogFile        = "SESSIONSYNC_LOG_FILE"
	EnvXDGConfigHome  = "XDG_CONFIG_HOME"

	ConfigDirName  = "sessionsync"
	ConfigFileName = "config.toml"
)

// ErrNotConfigured means no endpoint or API key is available
var ErrNotConfigured = errors.New("sessionsync is not configured. Run: sessionsync login")

// Config is the resolved configuration for one invocation
type Config struct {
	APIURL         string
	APIKey         string
	AutoSync       bool
	SyncToolCalls  bool
	SyncThinking   bool
	Redact         bool
	RealtimeEvents bool
	StateBackend   string
	StateDir       string
	TimeoutSeconds int
	Compress       bool
	BatchSize      int
	MaxInputBytes  int64
	Debug          bool
	LogFile        string
}

// FileConfig is the on-disk config. Pointers distinguish "unset" from false/0
// so a missing key keeps its default.
type FileConfig struct {
	APIURL         string `toml:"api_url,omitempty"`
	APIKey         string `toml:"api_key,omitempty"`
	AutoSync       *bool  `toml:"auto_sync,omitempty"`
	SyncToolCalls  *bool  `toml:"sync_tool_calls,omitempty"`
	SyncThinking   *bool  `toml:"sync_thinking,omitempty"`
	Redact         *bool  `toml:"redact,omitempty"`
	RealtimeEvents *bool  `toml:"realtime_events,omitempty"`
	StateBackend   string `toml:"state_backend,omitempty"`
	StateDir       string `toml:"state_dir,omitempty"`
	TimeoutSeconds *int   `toml:"timeout_seconds,omitempty"`
	Compress       *bool  `toml:"compress,omitempty"`
	BatchSize      *int   `toml:"batch_size,omitempty"`
	MaxInputBytes  *int64 `toml:"max_input_bytes,omitempty"`
	Debug          *bool  `toml:"debug,omitempty"`
	LogFile        string `toml:"log_file,omitempty"`
}

// IsConfigured returns true when both the endpoint and API key are set
func (c *Config) IsConfigured() bool {
	return c.APIURL != "" && c.APIKey != ""
}

// ConfigDir returns the config directory, honoring XDG_CONFIG_HOME
func ConfigDir() string {
	if xdg := os.Getenv(EnvXDGConfigHome); xdg != "" {
		return filepath.Join(xdg, ConfigDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", ConfigDirName)
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, ConfigFileName)
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	cfg := &Config{
		AutoSync:      true,
		SyncToolCalls: true,
		Redact:        true,
		StateBackend:  DefaultStateBackend,
		BatchSize:     DefaultBatchSize,
		MaxInputBytes: DefaultMaxInputBytes,
		LogFile:       filepath.Join(os.TempDir(), DefaultLogFileName),
	}
	if dir := ConfigDir(); dir != "" {
		cfg.StateDir = filepath.Join(dir, "state")
	}
	return cfg
}

// LoadFileConfig loads the config file from disk. A missing file yields nil, nil.
func LoadFileConfig() (*FileConfig, error) {
	path := ConfigPath()
	if path == "" {
		return nil, nil
	}

	var fc FileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return &fc, nil
}

// SaveFileConfig saves the config to disk, readable only by the user
func SaveFileConfig(fc *FileConfig) error {
	dir := ConfigDir()
	if dir == "" {
		return os.ErrNotExist
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(fc); err != nil {
		return err
	}
	return os.WriteFile(ConfigPath(), buf.Bytes(), 0600)
}

// LoadConfig resolves configuration: environment variables > config file > defaults.
// An unreadable config file is ignored; hooks must keep working without it.
func LoadConfig() *Config {
	cfg := DefaultConfig()

	if fc, err := LoadFileConfig(); err == nil && fc != nil {
		fc.applyTo(cfg)
	}

	applyEnv(cfg)

	home, _ := os.UserHomeDir()
	cfg.StateDir = expandHome(cfg.StateDir, home)
	cfg.LogFile = expandHome(cfg.LogFile, home)

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxInputBytes <= 0 {
		cfg.MaxInputBytes = DefaultMaxInputBytes
	}
	if cfg.StateBackend == "" {
		cfg.StateBackend = DefaultStateBackend
	}
	return cfg
}

func (fc *FileConfig) applyTo(cfg *Config) {
	if fc.APIURL != "" {
		cfg.APIURL = fc.APIURL
	}
	if fc.APIKey != "" {
		cfg.APIKey = fc.APIKey
	}
	setBool(&cfg.AutoSync, fc.AutoSync)
	setBool(&cfg.SyncToolCalls, fc.SyncToolCalls)
	setBool(&cfg.SyncThinking, fc.SyncThinking)
	setBool(&cfg.Redact, fc.Redact)
	setBool(&cfg.RealtimeEvents, fc.RealtimeEvents)
	setBool(&cfg.Compress, fc.Compress)
	setBool(&cfg.Debug, fc.Debug)
	if fc.StateBackend != "" {
		cfg.StateBackend = fc.StateBackend
	}
	if fc.StateDir != "" {
		cfg.StateDir = fc.StateDir
	}
	if fc.TimeoutSeconds != nil && *fc.TimeoutSeconds >= 0 {
		cfg.TimeoutSeconds = *fc.TimeoutSeconds
	}
	if fc.BatchSize != nil {
		cfg.BatchSize = *fc.BatchSize
	}
	if fc.MaxInputBytes != nil {
		cfg.MaxInputBytes = *fc.MaxInputBytes
	}
	if fc.LogFile != "" {
		cfg.LogFile = fc.LogFile
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvAPIURL); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.APIKey = v
	}
	envBool(&cfg.AutoSync, EnvAutoSync)
	envBool(&cfg.SyncToolCalls, EnvSyncToolCalls)
	envBool(&cfg.SyncThinking, EnvSyncThinking)
	envBool(&cfg.Redact, EnvRedact)
	envBool(&cfg.RealtimeEvents, EnvRealtimeEvents)
	envBool(&cfg.Compress, EnvCompress)
	envBool(&cfg.Debug, EnvDebug)
	if v := os.Getenv(EnvStateBackend); v != "" {
		cfg.StateBackend = v
	}
	if v := os.Getenv(EnvStateDir); v != "" {
		cfg.StateDir = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		if timeout, err := strconv.Atoi(v); err == nil && timeout >= 0 {
			cfg.TimeoutSeconds = timeout
		}
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func envBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func expandHome(path, home string) string {
	if home != "" && len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}

// MaskAPIKey returns a masked version of the API key for display
func MaskAPIKey(key string) string {
	if len(key) <= 4 {
		return "***"
	}
	return "***..." + key[len(key)-4:]
}
