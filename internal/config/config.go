package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Debug    bool           `yaml:"debug"`
	HTTP     HTTPConfig     `yaml:"http"`
	Bap      BapConfig      `yaml:"bap"`
	Bpp      *BppConfig     `yaml:"bpp"`
	Redis    RedisConfig    `yaml:"redis"`
	DB       DBConfig       `yaml:"db"`
	Cache    CacheConfig    `yaml:"cache"`
	Cron     CronConfig     `yaml:"cron"`
	GCP      GCPConfig      `yaml:"gcp"`
	Services ServicesConfig `yaml:"services"`
	Auth     AuthConfig     `yaml:"auth"`

	// Path to the external scoring-rules JSON (see rules.go).
	MatchScorePath string `yaml:"match_score_path"`
}

type HTTPConfig struct {
	Address string `yaml:"address"`
	Port    string `yaml:"port"`
}

// BapConfig identifies this participant on the network. CallerURI is the
// protocol adapter every outbound action is POSTed to.
type BapConfig struct {
	ID        string `yaml:"id"`
	CallerURI string `yaml:"caller_uri"`
	BapURI    string `yaml:"bap_uri"`
	Domain    string `yaml:"domain"`
	Version   string `yaml:"version"`
	TTL       string `yaml:"ttl"`
}

// BppConfig is the optional mirror role: when set, the service also answers
// profile searches from the network as a profiles BPP.
type BppConfig struct {
	ID          string `yaml:"id"`
	CallerURI   string `yaml:"caller_uri"`
	CatalogName string `yaml:"catalog_name"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type DBConfig struct {
	URL string `yaml:"url"`
}

type CacheConfig struct {
	ResultTTLSecs int `yaml:"result_ttl_secs"`
	TxnTTLSecs    int `yaml:"txn_ttl_secs"`
	ThrottleSecs  int `yaml:"throttle_secs"`
}

func (c CacheConfig) ResultTTL() time.Duration   { return time.Duration(c.ResultTTLSecs) * time.Second }
func (c CacheConfig) TxnTTL() time.Duration      { return time.Duration(c.TxnTTLSecs) * time.Second }
func (c CacheConfig) ThrottleTTL() time.Duration { return time.Duration(c.ThrottleSecs) * time.Second }

type CronConfig struct {
	FetchJobs          JobSchedule        `yaml:"fetch_jobs"`
	FetchProfiles      JobSchedule        `yaml:"fetch_profiles"`
	ComputeMatchScores MatchScoreSchedule `yaml:"compute_match_scores"`
	Notification       NotificationCron   `yaml:"notification"`
}

type JobSchedule struct {
	Seconds int `yaml:"seconds"`
}

type MatchScoreSchedule struct {
	Source  string `yaml:"source"`
	Batch   int    `yaml:"batch"`
	Seconds int    `yaml:"seconds"`
}

type NotificationCron struct {
	MinScore int16                `yaml:"min_score"`
	Batch    int                  `yaml:"batch"`
	Schedule NotificationSchedule `yaml:"schedule"`
}

// NotificationSchedule is a clock-aligned weekly or monthly slot.
type NotificationSchedule struct {
	Type    string `yaml:"type"` // "weekly" or "monthly"
	Weekday *int   `yaml:"weekday"`
	Day     *int   `yaml:"day"`
	Hour    int    `yaml:"hour"`
	Minute  int    `yaml:"minute"`
	Seconds int    `yaml:"seconds"`
}

// GCPConfig drives the embedding provider.
type GCPConfig struct {
	ProjectID string `yaml:"project_id"`
	Model     string `yaml:"model"`
	AuthToken string `yaml:"auth_token"`
}

type ServicesConfig struct {
	Seeker       ServiceEndpoint     `yaml:"seeker"`
	Notification NotificationService `yaml:"notification"`
}

type ServiceEndpoint struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

type NotificationService struct {
	BaseURL    string `yaml:"base_url"`
	ContentSID string `yaml:"content_sid"`
	NSKeyID    string `yaml:"ns_key_id"`
	NSSecret   string `yaml:"ns_secret"`
}

type AuthConfig struct {
	XAPIKey string `yaml:"x_api_key"`
}

// Load reads and validates the YAML config at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.HTTP.Port == "" {
		return nil, fmt.Errorf("config: http.port is required")
	}
	if cfg.Bap.ID == "" || cfg.Bap.CallerURI == "" {
		return nil, fmt.Errorf("config: bap.id and bap.caller_uri are required")
	}
	if cfg.Redis.URL == "" || cfg.DB.URL == "" {
		return nil, fmt.Errorf("config: redis.url and db.url are required")
	}
	if cfg.Cron.ComputeMatchScores.Batch < 1 {
		cfg.Cron.ComputeMatchScores.Batch = 1
	}
	if cfg.Cron.Notification.Batch < 1 {
		cfg.Cron.Notification.Batch = 1
	}
	return &cfg, nil
}
