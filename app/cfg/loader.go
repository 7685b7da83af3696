package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath   string `long:"db-path" env:"DB_PATH" default:"./feedloop.db" description:"Path to the SQLite database file"`
	SeedsDir string `long:"seeds-dir" env:"SEEDS_DIR" default:"./seeds" description:"Directory containing seed source files"`

	// Job configuration
	EnableScheduledJobs    bool   `long:"enable-scheduled-jobs" env:"ENABLE_SCHEDULED_JOBS" default:"true" description:"Run refresh and cleanup jobs on their schedules"`
	RefreshSchedule        string `long:"refresh-schedule" env:"REFRESH_SCHEDULE" default:"*/30 * * * *" description:"Cron schedule for the refresh job"`
	CleanupSchedule        string `long:"cleanup-schedule" env:"CLEANUP_SCHEDULE" default:"0 3 * * *" description:"Cron schedule for the cleanup job"`
	StuckRunThreshold      int    `long:"stuck-run-threshold" env:"STUCK_RUN_THRESHOLD_MINUTES" default:"10" description:"Minutes before a running job run is considered stuck"`
	WorkerCount            int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of concurrent source refreshes per batch"`
	FetchTimeout           int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"HTTP fetch timeout in seconds"`
	DefaultRefreshInterval int    `long:"default-refresh-interval" env:"DEFAULT_REFRESH_INTERVAL" default:"60" description:"System default refresh interval in minutes"`
	DefaultMaxItems        int    `long:"default-max-items" env:"DEFAULT_MAX_ITEMS" default:"0" description:"System default retained item count per source (0 = unlimited)"`
	DefaultMaxItemAge      int    `long:"default-max-item-age" env:"DEFAULT_MAX_ITEM_AGE_DAYS" default:"0" description:"System default item age limit in days (0 = unlimited)"`
	RedisAddr              string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for cross-process job locks (optional)"`

	// Application configuration
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"feedloop/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	// .env is optional, absence is fine
	_ = godotenv.Load()

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:                 raw.DBPath,
		SeedsDir:               raw.SeedsDir,
		EnableScheduledJobs:    raw.EnableScheduledJobs,
		RefreshSchedule:        raw.RefreshSchedule,
		CleanupSchedule:        raw.CleanupSchedule,
		StuckRunThreshold:      raw.StuckRunThreshold,
		WorkerCount:            raw.WorkerCount,
		FetchTimeout:           raw.FetchTimeout,
		DefaultRefreshInterval: raw.DefaultRefreshInterval,
		DefaultMaxItems:        raw.DefaultMaxItems,
		DefaultMaxItemAge:      raw.DefaultMaxItemAge,
		RedisAddr:              raw.RedisAddr,
		Port:                   raw.Port,
		APIAccessKey:           raw.APIAccessKey,
		UserAgent:              raw.UserAgent,
		Timezone:               raw.Timezone,
		Debug:                  raw.Debug,
		Version:                GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
