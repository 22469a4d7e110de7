package config

import (
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

type Config struct {
	Blocking struct {
		AutoBlock          bool     `json:"auto_block"`
		AutoBlockThreshold int      `json:"auto_block_threshold"`
		BlockPatterns      []string `json:"block_patterns"`
	} `json:"blocking"`

	Cookies struct {
		BlockAll          bool `json:"block_all"`
		LogAttempts       bool `json:"log_attempts"`
		AutoBlockTrackers bool `json:"auto_block_trackers"`
	} `json:"cookies"`

	Network struct {
		Enabled           bool    `json:"enabled"`
		ServerURL         string  `json:"server_url"`
		ReportConfidence  float64 `json:"report_confidence"`
		TimeoutSeconds    uint32  `json:"timeout_seconds"`
		MaxRetries        uint32  `json:"max_retries"`
		RetryDelaySeconds uint32  `json:"retry_delay_seconds"`
	} `json:"network"`

	Database struct {
		LogRequests bool `json:"log_requests"`
	} `json:"database"`

	Server struct {
		Port                int   `json:"port"`
		ScorePerReport      int64 `json:"score_per_report"`
		UniqueDomainScoring bool  `json:"unique_domain_scoring"`
	} `json:"server"`

	Whitelist []string `json:"whitelist"`
}

const settingsFilePath = "data/settings.json"

var (
	//go:embed default_settings.json
	defaultConfig []byte

	configValue atomic.Value
	configMu    sync.Mutex
)

func init() {
	cfg, err := parseConfig(defaultConfig)
	if err != nil {
		// The embedded defaults are part of the build; a parse failure
		// here is a programming error.
		panic(err)
	}
	configValue.Store(cfg)
}

// ReadSettings loads the settings file, creating it from the embedded
// defaults when missing.
func ReadSettings() {
	data, err := os.ReadFile(settingsFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Settings file not found, creating with default configuration")

			if err := os.MkdirAll(filepath.Dir(settingsFilePath), os.ModePerm); err != nil {
				log.Error("Error creating directory for settings file", "error", err)
				return
			}
			if err := os.WriteFile(settingsFilePath, defaultConfig, os.ModePerm); err != nil {
				log.Error("Error writing default settings file", "error", err)
				return
			}

			data = defaultConfig
		} else {
			log.Error("Error reading settings file", "error", err)
			return
		}
	}

	newConfig, err := parseConfig(data)
	if err != nil {
		log.Error("Error unmarshalling settings file", "error", err)
		return
	}

	applyConfigUpdate(newConfig, false)
	log.Debug("Settings file loaded successfully")
}

// SetConfig applies the new configuration and persists it to disk.
func SetConfig(newConfig Config) {
	applyConfigUpdate(newConfig, true)
}

func applyConfigUpdate(newConfig Config, persistToFile bool) {
	configMu.Lock()
	defer configMu.Unlock()

	configValue.Store(newConfig)

	if persistToFile {
		data, err := json.MarshalIndent(newConfig, "", "  ")
		if err != nil {
			log.Error("Error marshalling new configuration", "error", err)
			return
		}
		if err := os.MkdirAll(filepath.Dir(settingsFilePath), os.ModePerm); err != nil {
			log.Error("Error creating directory for settings file", "error", err)
			return
		}
		if err := os.WriteFile(settingsFilePath, data, os.ModePerm); err != nil {
			log.Error("Error writing new configuration to file", "error", err)
		}
	}
}

func parseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.Blocking.AutoBlockThreshold <= 0 {
		cfg.Blocking.AutoBlockThreshold = 3
	}
	return cfg, nil
}

func GetConfig() Config {
	return configValue.Load().(Config)
}

// SetConfigForTests swaps the active configuration without touching disk.
func SetConfigForTests(newConfig Config) {
	applyConfigUpdate(newConfig, false)
}

// DefaultConfigForTests returns a fresh copy of the embedded defaults.
func DefaultConfigForTests() Config {
	cfg, err := parseConfig(defaultConfig)
	if err != nil {
		panic(err)
	}
	return cfg
}
