package config

import "time"

type Config struct {
	ConfigVersion int             `yaml:"configVersion"`
	Store         StoreConfig     `yaml:"store"`
	Model         ModelConfig     `yaml:"model"`
	Pipeline      PipelineConfig  `yaml:"pipeline"`
	Hardening     HardeningConfig `yaml:"hardening"`
	Notify        NotifyConfig    `yaml:"notify"`
	Schedule      ScheduleConfig  `yaml:"schedule"`
	Logging       LoggingConfig   `yaml:"logging"`
	Metrics       MetricsConfig   `yaml:"metrics"`

	baseDir string `yaml:"-"`
}

type StoreConfig struct {
	DSN          string        `yaml:"dsn"`
	QueryTimeout time.Duration `yaml:"queryTimeout"`
	BatchSize    int           `yaml:"batchSize"`
}

type ModelConfig struct {
	Artifact  string  `yaml:"artifact"`
	Threshold float64 `yaml:"threshold"`
	Watch     bool    `yaml:"watch"`
}

type PipelineConfig struct {
	Workers       int           `yaml:"workers"`
	RetryBase     time.Duration `yaml:"retryBase"`
	RetryMax      time.Duration `yaml:"retryMax"`
	RetryAttempts int           `yaml:"retryAttempts"`
	CacheSize     int           `yaml:"cacheSize"`
}

type HardeningConfig struct {
	RuleFiles          []string      `yaml:"ruleFiles"`
	StateFile          string        `yaml:"stateFile"`
	RulesOut           string        `yaml:"rulesOut"`
	Lookback           time.Duration `yaml:"lookback"`
	MinSamples         int           `yaml:"minSamples"`
	PromoteThreshold   float64       `yaml:"promoteThreshold"`
	DemoteThreshold    float64       `yaml:"demoteThreshold"`
	ConfirmCycles      int           `yaml:"confirmCycles"`
	AttackPercentAlert float64       `yaml:"attackPercentAlert"`
}

type NotifyConfig struct {
	Throttle time.Duration  `yaml:"throttle"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Pushover PushoverConfig `yaml:"pushover"`
}

type SMTPConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	From     string        `yaml:"from"`
	To       []string      `yaml:"to"`
	Timeout  time.Duration `yaml:"timeout"`
}

type PushoverConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	UserKey string `yaml:"userKey"`
}

type ScheduleConfig struct {
	ClassifyEvery time.Duration `yaml:"classifyEvery"`
	HardenEvery   time.Duration `yaml:"hardenEvery"`
	NATS          NATSConfig    `yaml:"nats"`
}

type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	RunLog string `yaml:"runLog"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

func (c *Config) BaseDir() string {
	return c.baseDir
}

func (c *Config) ResolvePath(path string) string {
	return c.resolvePath(path)
}
