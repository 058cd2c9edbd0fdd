package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/kozaktomas/face-attend/internal/facematch"
	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var profilesYAML []byte

type Config struct {
	Match    MatchConfig
	Encoder  EncoderConfig
	Database DatabaseConfig
	Roster   RosterConfig
	Web      WebConfig
	Profiles ProfilesConfig
}

type MatchConfig struct {
	ConfidentThreshold float64
	UncertainThreshold float64
	MinObservations    int
	Metric             facematch.Metric
	EmbeddingDim       int
	Profile            string // encoder profile name, used when thresholds are unset
	SessionIdleTimeout time.Duration
	ShortlistLimit     int // candidate persons per probe via HNSW, 0 disables
}

type EncoderConfig struct {
	URL     string
	Timeout time.Duration
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type RosterConfig struct {
	DatabaseURL string // MySQL DSN for read-only SIS access (optional)
}

type WebConfig struct {
	APIKey string
}

type ProfilesConfig struct {
	Profiles map[string]EncoderProfile `yaml:"profiles"`
}

// EncoderProfile is a threshold preset for a known encoder model.
type EncoderProfile struct {
	Metric    string  `yaml:"metric"`
	Dim       int     `yaml:"dim"`
	Confident float64 `yaml:"confident"`
	Uncertain float64 `yaml:"uncertain"`
}

// envInt reads an environment variable as a positive integer. The default
// applies only when the variable is unset; a set-but-invalid value is an
// error, never a silent fallback.
func envInt(key string, defaultVal int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, s)
	}
	return n, nil
}

// envFloat reads an environment variable as a float64. The default applies
// only when the variable is unset; an unparseable value is an error.
func envFloat(key string, defaultVal float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", key, s)
	}
	return f, nil
}

// Load reads configuration from the environment. Threshold presets for the
// selected encoder profile fill in anything not set explicitly; Validate
// must still be called before the values are trusted. Malformed values
// fail the load instead of degrading to defaults.
func Load() (*Config, error) {
	var profiles ProfilesConfig
	if err := yaml.Unmarshal(profilesYAML, &profiles); err != nil {
		// Embedded file, should never happen in practice.
		panic("failed to unmarshal embedded profiles.yaml: " + err.Error())
	}

	var errs []error
	intEnv := func(key string, defaultVal int) int {
		v, err := envInt(key, defaultVal)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	floatEnv := func(key string, defaultVal float64) float64 {
		v, err := envFloat(key, defaultVal)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := &Config{
		Match: MatchConfig{
			ConfidentThreshold: floatEnv("CONFIDENT_THRESHOLD", 0),
			UncertainThreshold: floatEnv("UNCERTAIN_THRESHOLD", 0),
			MinObservations:    intEnv("MIN_OBSERVATIONS", 1),
			Metric:             facematch.Metric(os.Getenv("SIMILARITY_METRIC")),
			EmbeddingDim:       intEnv("EMBEDDING_DIM", 0),
			Profile:            os.Getenv("ENCODER_PROFILE"),
			SessionIdleTimeout: time.Duration(intEnv("SESSION_IDLE_TIMEOUT_MINUTES", 90)) * time.Minute,
			ShortlistLimit:     intEnv("SHORTLIST_LIMIT", 25),
		},
		Encoder: EncoderConfig{
			URL:     os.Getenv("ENCODER_URL"),
			Timeout: time.Duration(intEnv("ENCODER_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: intEnv("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: intEnv("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Roster: RosterConfig{
			DatabaseURL: os.Getenv("ROSTER_DATABASE_URL"),
		},
		Web: WebConfig{
			APIKey: os.Getenv("API_KEY"),
		},
		Profiles: profiles,
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	cfg.applyProfile()
	return cfg, nil
}

// applyProfile fills unset match parameters from the selected encoder
// profile. Explicit environment values always win.
func (c *Config) applyProfile() {
	name := c.Match.Profile
	if name == "" {
		name = "mobilefacenet"
		c.Match.Profile = name
	}
	profile, ok := c.Profiles.Profiles[name]
	if !ok {
		return // Validate reports the unknown profile
	}

	if c.Match.Metric == "" {
		c.Match.Metric = facematch.Metric(profile.Metric)
	}
	if c.Match.EmbeddingDim == 0 {
		c.Match.EmbeddingDim = profile.Dim
	}
	if c.Match.ConfidentThreshold == 0 {
		c.Match.ConfidentThreshold = profile.Confident
	}
	if c.Match.UncertainThreshold == 0 {
		c.Match.UncertainThreshold = profile.Uncertain
	}
}

// Thresholds returns the configured confidence thresholds.
func (c *Config) Thresholds() facematch.Thresholds {
	return facematch.Thresholds{
		Confident: c.Match.ConfidentThreshold,
		Uncertain: c.Match.UncertainThreshold,
	}
}

// Validate checks the match configuration. Any inconsistency is fatal:
// the service refuses to start rather than classify with ambiguous bands.
func (c *Config) Validate() error {
	if _, ok := c.Profiles.Profiles[c.Match.Profile]; !ok && c.Match.Profile != "" {
		if c.Match.Metric == "" || c.Match.EmbeddingDim == 0 {
			return fmt.Errorf("unknown encoder profile %q and no explicit metric/dimension configured", c.Match.Profile)
		}
	}

	metric, err := facematch.ParseMetric(string(c.Match.Metric))
	if err != nil {
		return err
	}
	c.Match.Metric = metric

	if c.Match.EmbeddingDim <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Match.EmbeddingDim)
	}
	if c.Match.MinObservations < 1 {
		return fmt.Errorf("min observations must be >= 1, got %d", c.Match.MinObservations)
	}
	if err := c.Thresholds().Validate(metric); err != nil {
		return err
	}
	return nil
}
