package cfg

type Cfg struct {
	// Storage configuration
	DBPath   string
	SeedsDir string

	// Job configuration
	EnableScheduledJobs    bool
	RefreshSchedule        string
	CleanupSchedule        string
	StuckRunThreshold      int
	WorkerCount            int
	FetchTimeout           int
	DefaultRefreshInterval int
	DefaultMaxItems        int
	DefaultMaxItemAge      int
	RedisAddr              string

	// Application configuration
	Port         string
	APIAccessKey string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
