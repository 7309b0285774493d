package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all daemon configuration
type Config struct {
	ServerAddress string     `json:"serverAddress"`
	DatabasePath  string     `json:"databasePath"`
	DatabaseURL   string     `json:"databaseUrl"`
	Remote        Remote     `json:"remote"`
	Processing    Processing `json:"processing"`
	Sync          Sync       `json:"sync"`
	Cache         Cache      `json:"cache"`
	Security      Security   `json:"security"`
}

// Remote configures the BaaS the daemon syncs against
type Remote struct {
	BaseURL      string `json:"baseUrl"`
	RealtimeURL  string `json:"realtimeUrl"` // ws endpoint; derived from BaseURL when empty
	Identity     string `json:"identity"`
	Password     string `json:"password"`
	AuthToken    string `json:"authToken"` // pre-issued token; skips password auth
	TimeoutSecs  int    `json:"timeoutSecs"`
}

// Processing configures the external AI transform API
type Processing struct {
	BaseURL      string `json:"baseUrl"`
	BearerToken  string `json:"bearerToken"`
	ClientID     string `json:"clientId"`     // client-credentials flow when set
	ClientSecret string `json:"clientSecret"`
	TokenURL     string `json:"tokenUrl"`
	PollSecs     int    `json:"pollSecs"`
}

// Sync configures the background sync coordinator
type Sync struct {
	IntervalSecs    int `json:"intervalSecs"`
	RecentWindowMin int `json:"recentWindowMin"`
	UploadDelayMs   int `json:"uploadDelayMs"`
	MaxRetries      int `json:"maxRetries"`
	RetryBackoffSec int `json:"retryBackoffSec"`
}

// Cache configures the merged-list cache
type Cache struct {
	TTLMinutes int `json:"ttlMinutes"`
}

// Security configuration for the local API
type Security struct {
	APIKey       string `json:"apiKey"`
	APIKeyHash   string `json:"apiKeyHash"` // bcrypt hash; preferred over plaintext key
	APIKeyHeader string `json:"apiKeyHeader"`
}

// UsePostgres returns true if PostgreSQL should be used for local state
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// SyncInterval returns the coordinator tick interval
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.Sync.IntervalSecs) * time.Second
}

// CacheTTL returns the merged-list cache validity window
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMinutes) * time.Minute
}

// PollInterval returns the job status poll interval
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Processing.PollSecs) * time.Second
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		ServerAddress: ":5600",
		DatabasePath:  "picsync.db",
		Remote: Remote{
			BaseURL:     "http://127.0.0.1:8090",
			TimeoutSecs: 30,
		},
		Processing: Processing{
			BaseURL:  "https://api.printapic.example/v1",
			PollSecs: 2,
		},
		Sync: Sync{
			IntervalSecs:    60,
			RecentWindowMin: 5,
			UploadDelayMs:   250,
			MaxRetries:      3,
			RetryBackoffSec: 30,
		},
		Cache: Cache{
			TTLMinutes: 5,
		},
		Security: Security{
			APIKey:       "CHANGE_THIS_TO_A_SECURE_API_KEY_AT_LEAST_32_CHARS",
			APIKeyHeader: "X-API-Key",
		},
	}
}

// Load loads configuration from file or environment
func Load() (*Config, error) {
	cfg := defaultConfig()

	// Try to load from config file
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// Override from environment variables
	if addr := os.Getenv("SERVER_ADDRESS"); addr != "" {
		cfg.ServerAddress = addr
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if remoteURL := os.Getenv("REMOTE_BASE_URL"); remoteURL != "" {
		cfg.Remote.BaseURL = remoteURL
	}
	if identity := os.Getenv("REMOTE_IDENTITY"); identity != "" {
		cfg.Remote.Identity = identity
	}
	if password := os.Getenv("REMOTE_PASSWORD"); password != "" {
		cfg.Remote.Password = password
	}
	if token := os.Getenv("REMOTE_AUTH_TOKEN"); token != "" {
		cfg.Remote.AuthToken = token
	}
	if procURL := os.Getenv("PROCESSING_BASE_URL"); procURL != "" {
		cfg.Processing.BaseURL = procURL
	}
	if bearer := os.Getenv("PROCESSING_BEARER_TOKEN"); bearer != "" {
		cfg.Processing.BearerToken = bearer
	}
	if apiKey := os.Getenv("API_KEY"); apiKey != "" {
		cfg.Security.APIKey = apiKey
	}
	if keyHash := os.Getenv("API_KEY_HASH"); keyHash != "" {
		cfg.Security.APIKeyHash = keyHash
	}

	if interval := os.Getenv("SYNC_INTERVAL_SECS"); interval != "" {
		if secs, err := strconv.Atoi(interval); err == nil && secs > 0 {
			cfg.Sync.IntervalSecs = secs
		}
	}
	if ttl := os.Getenv("CACHE_TTL_MINUTES"); ttl != "" {
		if mins, err := strconv.Atoi(ttl); err == nil && mins > 0 {
			cfg.Cache.TTLMinutes = mins
		}
	}

	// Make database path absolute so the daemon can be started from anywhere
	if !cfg.UsePostgres() {
		absPath, err := filepath.Abs(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		cfg.DatabasePath = absPath
	}

	return cfg, nil
}
