// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	API        APIConfig        `mapstructure:"api" yaml:"api"`
	Classifier ClassifierConfig `mapstructure:"classifier" yaml:"classifier"`
	Network    NetworkConfig    `mapstructure:"network" yaml:"network"`
	Browser    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	Storage    StorageConfig    `mapstructure:"storage" yaml:"storage"`
}

// LoggerConfig controls the zap logger setup.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// APIConfig locates the remote collaborators: the auth provider that issues
// and refreshes bearer tokens, and the resume storage service.
type APIConfig struct {
	// BaseURL is the resume storage service (list + download endpoints).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// AuthURL is the token endpoint root of the auth provider.
	AuthURL string `mapstructure:"auth_url" yaml:"auth_url"`
	// AuthAPIKey is the provider's public api key header value.
	AuthAPIKey string `mapstructure:"auth_api_key" yaml:"-"`
	// RefreshLookahead is how close to expiry a token may get before
	// ValidToken refreshes it proactively.
	RefreshLookahead time.Duration `mapstructure:"refresh_lookahead" yaml:"refresh_lookahead"`
}

// ClassifierConfig makes the scoring heuristic a pure function of
// (DOM snapshot, this table) instead of a pile of hard coded constants.
type ClassifierConfig struct {
	// Keywords are matched as substrings of attributes and label text.
	// StandaloneKeywords only count in ancestor text when they appear as
	// whole words ("cv" inside "canvas" must not score).
	Keywords           []string `mapstructure:"keywords" yaml:"keywords"`
	StandaloneKeywords []string `mapstructure:"standalone_keywords" yaml:"standalone_keywords"`

	Weights WeightTable `mapstructure:"weights" yaml:"weights"`

	// StrictThreshold is the minimum best score for the strict policy to
	// classify the page as having a resume field.
	StrictThreshold int `mapstructure:"strict_threshold" yaml:"strict_threshold"`
	// AncestorDepth is how many levels of enclosing elements contribute
	// nearby text to the score.
	AncestorDepth int `mapstructure:"ancestor_depth" yaml:"ancestor_depth"`
}

// WeightTable maps each independent signal to its score contribution.
type WeightTable struct {
	NameAttr    int `mapstructure:"name_attr" yaml:"name_attr"`
	IDAttr      int `mapstructure:"id_attr" yaml:"id_attr"`
	Placeholder int `mapstructure:"placeholder" yaml:"placeholder"`
	Label       int `mapstructure:"label" yaml:"label"`
	// NearbyText is multiplied by the number of keyword occurrences.
	NearbyText int `mapstructure:"nearby_text" yaml:"nearby_text"`
}

// NetworkConfig tunes the privileged fetch proxy.
type NetworkConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// FetchesPerSecond throttles proxied downloads so a misbehaving
	// page-side caller cannot hammer the storage service.
	FetchesPerSecond float64 `mapstructure:"fetches_per_second" yaml:"fetches_per_second"`
	FetchBurst       int     `mapstructure:"fetch_burst" yaml:"fetch_burst"`
}

// BrowserConfig holds settings for the live Chrome adapter.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	RemoteDebuggerURL string        `mapstructure:"remote_debugger_url" yaml:"remote_debugger_url"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
}

// StorageConfig locates the persisted session record.
type StorageConfig struct {
	// Dir overrides the default per-user config directory when set.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// SetDefaults registers every default value on the given viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "ezapp")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)

	v.SetDefault("api.refresh_lookahead", 60*time.Second)

	v.SetDefault("classifier.keywords", []string{"resume", "cv"})
	v.SetDefault("classifier.standalone_keywords", []string{"cv"})
	v.SetDefault("classifier.weights.name_attr", 50)
	v.SetDefault("classifier.weights.id_attr", 50)
	v.SetDefault("classifier.weights.placeholder", 30)
	v.SetDefault("classifier.weights.label", 40)
	v.SetDefault("classifier.weights.nearby_text", 15)
	v.SetDefault("classifier.strict_threshold", 30)
	v.SetDefault("classifier.ancestor_depth", 3)

	v.SetDefault("network.timeout", 30*time.Second)
	v.SetDefault("network.fetches_per_second", 1.0)
	v.SetDefault("network.fetch_burst", 2)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.navigation_timeout", 45*time.Second)
	v.SetDefault("browser.post_load_wait", 500*time.Millisecond)
}

// Default returns a Config populated with the same defaults viper applies.
// Handy for tests and for library use without a CLI front end.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults unmarshal into the matching struct; a failure here is a
		// programming error, not a runtime condition.
		panic(fmt.Sprintf("config: defaults do not unmarshal: %v", err))
	}
	return &cfg
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.API.RefreshLookahead < 0 {
		return fmt.Errorf("api.refresh_lookahead must not be negative")
	}
	if c.Classifier.AncestorDepth < 0 {
		return fmt.Errorf("classifier.ancestor_depth must not be negative")
	}
	if len(c.Classifier.Keywords) == 0 {
		return fmt.Errorf("classifier.keywords must not be empty")
	}
	if c.Network.FetchesPerSecond <= 0 {
		return fmt.Errorf("network.fetches_per_second must be positive")
	}
	return nil
}
