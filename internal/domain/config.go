package domain

import "time"

// Config holds the complete RiskShield configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines infrastructure choices
	Tier Tier `json:"tier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`
	Classifier ClassifierConfig `json:"classifier"`
	Scoring    ScoringConfig    `json:"scoring"`

	// Observability
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string   `json:"host"`
	Port         int      `json:"port"`
	ReadTimeout  int      `json:"readTimeout"`  // seconds
	WriteTimeout int      `json:"writeTimeout"` // seconds
	CORSOrigins  []string `json:"corsOrigins"`

	// Rate limiting (per client IP)
	RateLimitEnabled  bool `json:"rateLimitEnabled"`
	RateLimitRequests int  `json:"rateLimitRequests"`
	RateLimitWindow   int  `json:"rateLimitWindow"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// ScoringConfig holds the fraud-scoring constants. The thresholds are
// configuration, not derived values.
type ScoringConfig struct {
	// FraudThreshold is the combined-score cutoff for flagging fraud.
	FraudThreshold float64 `json:"fraudThreshold"`

	// HighRiskThreshold is the combined-score cutoff for the block-tier
	// recommendation.
	HighRiskThreshold float64 `json:"highRiskThreshold"`

	// Rule thresholds (amounts in the transaction currency).
	HighAmountThreshold    float64 `json:"highAmountThreshold"`
	NightAmountThreshold   float64 `json:"nightAmountThreshold"`
	WeekendAmountThreshold float64 `json:"weekendAmountThreshold"`
	HolidayAmountThreshold float64 `json:"holidayAmountThreshold"`
	NewAccountDays         int     `json:"newAccountDays"`

	// Velocity rule: fires when at least VelocityCount prior decisions for
	// the customer within VelocityWindow scored above VelocityScoreFloor.
	VelocityWindow     time.Duration `json:"velocityWindow"`
	VelocityCount      int           `json:"velocityCount"`
	VelocityScoreFloor float64       `json:"velocityScoreFloor"`

	// BulkMaxItems caps the bulk scoring batch size.
	BulkMaxItems int `json:"bulkMaxItems"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity is the single-node tier with SQLite + channels.
	TierCommunity Tier = "community"

	// TierPro is the tier with PostgreSQL + NATS + Redis.
	TierPro Tier = "pro"
)

// DefaultScoringConfig returns the production scoring constants.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		FraudThreshold:         0.6,
		HighRiskThreshold:      0.8,
		HighAmountThreshold:    100000,
		NightAmountThreshold:   50000,
		WeekendAmountThreshold: 80000,
		HolidayAmountThreshold: 70000,
		NewAccountDays:         10,
		VelocityWindow:         time.Hour,
		VelocityCount:          3,
		VelocityScoreFloor:     0.7,
		BulkMaxItems:           1000,
	}
}

// DefaultConfig returns a default configuration for the Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
			CORSOrigins: []string{
				"http://localhost:3000",
				"http://127.0.0.1:3000",
				"http://localhost:5500",
				"http://127.0.0.1:5500",
			},
			RateLimitEnabled:  true,
			RateLimitRequests: 100,
			RateLimitWindow:   60,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./riskshield.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Classifier: ClassifierConfig{
			ModelPath: "./model/fraud_gbdt.json",
		},
		Scoring: DefaultScoringConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// ProConfig returns a configuration for the Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "riskshield",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	return cfg
}
