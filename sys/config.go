package sys

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// --- Configuration & Environment ---

const (
	DefaultQueueCapacity   = 25
	DefaultSearchResults   = 5
	DefaultSearchTimeout   = 30 * time.Second
	DefaultPlaybackTimeout = 600 * time.Second
	DefaultSetupTimeout    = time.Duration(0)
)

type Config struct {
	Token        string
	GuildID      string
	DatabasePath string
	Silent       bool
	Debug        bool

	QueueCapacity int
	SearchResults int
	YtdlpPath     string

	// Zero disables expiry for that view kind.
	SearchTimeout   time.Duration
	PlaybackTimeout time.Duration
	SetupTimeout    time.Duration
}

var GlobalConfig *Config

// LoadConfig initializes the configuration from environment variables.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		folder := "."
		if info, err := os.Stat("data"); err == nil && info.IsDir() {
			folder = "./data"
		}
		dbPath = filepath.Join(folder, GetProjectName()+".db")
	}

	silent, _ := strconv.ParseBool(os.Getenv("SILENT"))
	debug, _ := strconv.ParseBool(os.Getenv("DEBUG"))

	cfg := &Config{
		Token:        os.Getenv("DISCORD_TOKEN"),
		GuildID:      os.Getenv("GUILD_ID"),
		DatabasePath: dbPath,
		Silent:       silent,
		Debug:        debug,
		YtdlpPath:    os.Getenv("YTDLP_PATH"),
	}

	var err error
	if cfg.QueueCapacity, err = envInt("QUEUE_CAPACITY", DefaultQueueCapacity); err != nil {
		return nil, err
	}
	if cfg.SearchResults, err = envInt("SEARCH_RESULTS", DefaultSearchResults); err != nil {
		return nil, err
	}
	if cfg.SearchTimeout, err = envDuration("SEARCH_TIMEOUT", DefaultSearchTimeout); err != nil {
		return nil, err
	}
	if cfg.PlaybackTimeout, err = envDuration("PLAYBACK_TIMEOUT", DefaultPlaybackTimeout); err != nil {
		return nil, err
	}
	if cfg.SetupTimeout, err = envDuration("SETUP_TIMEOUT", DefaultSetupTimeout); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Silent {
		SetSilentMode(true)
	}
	if cfg.Debug {
		SetDebugMode(true)
	}

	GlobalConfig = cfg
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf(MsgConfigMissingToken)
	}
	if c.GuildID != "" && (len(c.GuildID) < 17 || len(c.GuildID) > 20) {
		return fmt.Errorf("invalid GUILD_ID: must be a valid Snowflake")
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("invalid QUEUE_CAPACITY: %d", c.QueueCapacity)
	}
	if c.SearchResults < 1 || c.SearchResults > 25 {
		return fmt.Errorf("invalid SEARCH_RESULTS: %d (must be 1-25)", c.SearchResults)
	}
	if c.SearchTimeout < 0 || c.PlaybackTimeout < 0 || c.SetupTimeout < 0 {
		return fmt.Errorf("control timeouts must not be negative")
	}
	return nil
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// envDuration accepts Go durations ("30s", "10m") or bare seconds ("600").
func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func GetProjectName() string {
	exePath, err := os.Executable()
	projectName := "jukebox"
	if err == nil {
		projectName = filepath.Base(exePath)
		projectName = strings.TrimSuffix(projectName, ".exe")

		if projectName == "main" || strings.HasPrefix(projectName, "go_build_") || strings.HasSuffix(projectName, ".test") {
			if modData, err := os.ReadFile("go.mod"); err == nil {
				lines := strings.Split(string(modData), "\n")
				if len(lines) > 0 && strings.HasPrefix(lines[0], "module ") {
					parts := strings.Split(lines[0], "/")
					projectName = strings.TrimSpace(parts[len(parts)-1])
				}
			}
		}
	}
	return projectName
}
