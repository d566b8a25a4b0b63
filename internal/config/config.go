package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database     *dbConfig
	Service      *svcConfig
	Orchestrator *orchestratorConfig
	Batch        *batchConfig
	Kafka        *kafkaConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"market_planner"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	LogLevel       string `envconfig:"MARKET_PLANNER_LOG_LEVEL" default:"info"`
	MetricsAddress string `envconfig:"MARKET_PLANNER_METRICS_ADDRESS" default:":8080"`
}

type orchestratorConfig struct {
	PublishTimeout      time.Duration `envconfig:"MARKET_PLANNER_PUBLISH_TIMEOUT" default:"10s"`
	JobTimeout          time.Duration `envconfig:"MARKET_PLANNER_JOB_TIMEOUT" default:"2h"`
	TimeoutScanInterval time.Duration `envconfig:"MARKET_PLANNER_TIMEOUT_SCAN_INTERVAL" default:"10m"`
}

type BatchStrategy string

const (
	BatchStrategyAllLocations BatchStrategy = "ALL_LOCATIONS"
	BatchStrategyStaleOnly    BatchStrategy = "STALE_ONLY"
)

type batchConfig struct {
	Strategy           BatchStrategy `envconfig:"MARKET_PLANNER_BATCH_STRATEGY" default:"STALE_ONLY"`
	DelayMinutes       int           `envconfig:"MARKET_PLANNER_BATCH_DELAY_MINUTES" default:"5"`
	StaleThresholdDays int           `envconfig:"MARKET_PLANNER_BATCH_STALE_THRESHOLD_DAYS" default:"7"`
	// Interval between two automatic batches. Zero disables the periodic trigger.
	Interval time.Duration `envconfig:"MARKET_PLANNER_BATCH_INTERVAL" default:"24h"`
}

func (b *batchConfig) Delay() time.Duration {
	return time.Duration(b.DelayMinutes) * time.Minute
}

func (b *batchConfig) StaleThreshold() time.Duration {
	return time.Duration(b.StaleThresholdDays) * 24 * time.Hour
}

type kafkaConfig struct {
	Brokers          []string `envconfig:"MARKET_PLANNER_KAFKA_BROKERS" default:""`
	ClientID         string   `envconfig:"MARKET_PLANNER_KAFKA_CLIENT_ID" default:"market-planner"`
	ConsumerGroup    string   `envconfig:"MARKET_PLANNER_KAFKA_CONSUMER_GROUP" default:"market-planner"`
	WorkRequestTopic string   `envconfig:"MARKET_PLANNER_KAFKA_WORK_REQUEST_TOPIC" default:"scraping.work-requests"`
	CompletionTopic  string   `envconfig:"MARKET_PLANNER_KAFKA_COMPLETION_TOPIC" default:"scraping.completions"`
	FailureTopic     string   `envconfig:"MARKET_PLANNER_KAFKA_FAILURE_TOPIC" default:"scraping.failures"`
	DataUpdatedTopic string   `envconfig:"MARKET_PLANNER_KAFKA_DATA_UPDATED_TOPIC" default:"scraping.data-updated"`
}

// Enabled reports whether a broker is configured. Without one the in-process bus is used.
func (k *kafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Brokers[0] != ""
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// NewDefault returns a fresh configuration built from the environment and defaults, bypassing the singleton.
func NewDefault() *Config {
	c := new(Config)
	if err := envconfig.Process("", c); err != nil {
		panic(err)
	}
	return c
}
