package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// DefaultApplication is the application name the claim store reads its
// well-known properties under.
const DefaultApplication = "claimstore"

// S3Config configures the transport used to redeem s3:// references.
type S3Config struct {
	Region       string `json:"region,omitempty"`
	Endpoint     string `json:"endpoint,omitempty"`
	UsePathStyle bool   `json:"use_path_style,omitempty"`

	// AccessKeyID and SecretAccessKey select static credentials; when empty
	// the default AWS credential chain applies.
	AccessKeyID     string `json:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty"`
}

// Config holds application configuration.
type Config struct {
	// Application is the application name used for property lookups.
	Application string `json:"application,omitempty"`

	// Properties is a fallback property source: application -> property -> value.
	// Properties set in the SQLite store or the environment take precedence.
	Properties map[string]map[string]string `json:"properties,omitempty"`

	// LogFile enables a rotating JSON log file in addition to console output.
	LogFile string `json:"log_file,omitempty"`

	// LogLevel is one of debug, info, warn, error. Default: info.
	LogLevel string `json:"log_level,omitempty"`

	// LogJSON switches the console output to JSON.
	LogJSON bool `json:"log_json,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// HTTPTimeoutSeconds bounds redemption of http(s) references. Default: 30.
	HTTPTimeoutSeconds int `json:"http_timeout_seconds,omitempty"`

	// S3 configures redemption of s3:// references.
	S3 S3Config `json:"s3,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Application:        DefaultApplication,
		LogLevel:           "info",
		HTTPTimeoutSeconds: 30,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.claimstore.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.claimstore) and repo
// (.claimstore) directories. Repo config is found by walking upward from
// startDir. Repo config takes precedence for scalar values; arrays are merged
// and property maps are overlaid per key.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest
// .claimstore/config.json. Returns empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".claimstore", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.Application = firstNonEmpty(overlay.Application, base.Application)
	result.LogFile = firstNonEmpty(overlay.LogFile, base.LogFile)
	result.LogLevel = firstNonEmpty(overlay.LogLevel, base.LogLevel)
	result.S3.Region = firstNonEmpty(overlay.S3.Region, base.S3.Region)
	result.S3.Endpoint = firstNonEmpty(overlay.S3.Endpoint, base.S3.Endpoint)
	result.S3.AccessKeyID = firstNonEmpty(overlay.S3.AccessKeyID, base.S3.AccessKeyID)
	result.S3.SecretAccessKey = firstNonEmpty(overlay.S3.SecretAccessKey, base.S3.SecretAccessKey)

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	result.HTTPTimeoutSeconds = overlay.HTTPTimeoutSeconds
	if result.HTTPTimeoutSeconds == 0 {
		result.HTTPTimeoutSeconds = base.HTTPTimeoutSeconds
	}

	// Booleans: overlay wins if true, else base
	result.LogJSON = base.LogJSON || overlay.LogJSON
	result.S3.UsePathStyle = base.S3.UsePathStyle || overlay.S3.UsePathStyle

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.Properties = mergeProperties(base.Properties, overlay.Properties)

	return result
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// mergeProperties overlays property maps key by key.
func mergeProperties(base, overlay map[string]map[string]string) map[string]map[string]string {
	if len(base) == 0 && len(overlay) == 0 {
		return nil
	}
	result := make(map[string]map[string]string, len(base)+len(overlay))
	for _, src := range []map[string]map[string]string{base, overlay} {
		for app, props := range src {
			if result[app] == nil {
				result[app] = make(map[string]string, len(props))
			}
			for k, v := range props {
				result[app][k] = v
			}
		}
	}
	return result
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
