package circleguard

import (
	"net/http"

	"github.com/caarlos0/env/v11"

	"github.com/himanishpuri/circleguard/pkg/circleguard/replay"
	"github.com/himanishpuri/circleguard/pkg/circleguard/retry"
	"github.com/himanishpuri/circleguard/pkg/circleguard/runs"
	"github.com/himanishpuri/circleguard/pkg/circleguard/settings"
	"github.com/himanishpuri/circleguard/pkg/circleguard/snapshot"
	"github.com/himanishpuri/circleguard/pkg/circleguard/storage"
)

// SnapshotFile is the snapshot database name inside the cache directory.
const SnapshotFile = storage.DefaultDBFile

type Config struct {
	CacheDir       string
	APIKey         string
	APIBaseURL     string
	SnapshotURL    string
	SnapshotSHA256 string
	HTTPClient     *http.Client
	Logger         Logger
	Retry          *retry.Policy
	Settings       *settings.Store
	SettingsPath   string
	ReplayParser   replay.ParseFunc
	Executor       runs.Executor
	LoadWorkers    int
	// SkipBootstrap leaves the snapshot download to an explicit
	// BootstrapSnapshot call.
	SkipBootstrap bool
}

type Option func(*Config)

func WithCacheDir(dir string) Option {
	return func(c *Config) {
		c.CacheDir = dir
	}
}

func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

func WithAPIBaseURL(url string) Option {
	return func(c *Config) {
		c.APIBaseURL = url
	}
}

func WithSnapshotURL(url string) Option {
	return func(c *Config) {
		c.SnapshotURL = url
	}
}

// WithSnapshotSHA256 enables verification of the decompressed snapshot.
func WithSnapshotSHA256(sum string) Option {
	return func(c *Config) {
		c.SnapshotSHA256 = sum
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Config) {
		c.Retry = &p
	}
}

func WithSettings(s *settings.Store) Option {
	return func(c *Config) {
		c.Settings = s
	}
}

func WithSettingsPath(path string) Option {
	return func(c *Config) {
		c.SettingsPath = path
	}
}

func WithReplayParser(parse replay.ParseFunc) Option {
	return func(c *Config) {
		c.ReplayParser = parse
	}
}

func WithExecutor(exec runs.Executor) Option {
	return func(c *Config) {
		c.Executor = exec
	}
}

func WithLoadWorkers(n int) Option {
	return func(c *Config) {
		c.LoadWorkers = n
	}
}

func WithoutBootstrap() Option {
	return func(c *Config) {
		c.SkipBootstrap = true
	}
}

func defaultConfig() *Config {
	return &Config{
		SnapshotURL: snapshot.DefaultURL,
	}
}

// EnvConfig is the CIRCLEGUARD_* environment.
type EnvConfig struct {
	APIKey         string `env:"API_KEY"`
	APIBaseURL     string `env:"API_BASE_URL"`
	CacheDir       string `env:"CACHE_DIR"`
	SnapshotURL    string `env:"SNAPSHOT_URL"`
	SnapshotSHA256 string `env:"SNAPSHOT_SHA256"`
	SettingsPath   string `env:"SETTINGS_PATH"`
	Addr           string `env:"ADDR" envDefault:":8080"`
}

// LoadEnvConfig reads EnvConfig from the process environment.
func LoadEnvConfig() (EnvConfig, error) {
	return loadEnvConfig(nil)
}

func loadEnvConfig(environ map[string]string) (EnvConfig, error) {
	return env.ParseAsWithOptions[EnvConfig](env.Options{
		Prefix:      "CIRCLEGUARD_",
		Environment: environ,
	})
}

// Options turns the non-empty fields into service options.
func (e EnvConfig) Options() []Option {
	var opts []Option
	if e.APIKey != "" {
		opts = append(opts, WithAPIKey(e.APIKey))
	}
	if e.APIBaseURL != "" {
		opts = append(opts, WithAPIBaseURL(e.APIBaseURL))
	}
	if e.CacheDir != "" {
		opts = append(opts, WithCacheDir(e.CacheDir))
	}
	if e.SnapshotURL != "" {
		opts = append(opts, WithSnapshotURL(e.SnapshotURL))
	}
	if e.SnapshotSHA256 != "" {
		opts = append(opts, WithSnapshotSHA256(e.SnapshotSHA256))
	}
	if e.SettingsPath != "" {
		opts = append(opts, WithSettingsPath(e.SettingsPath))
	}
	return opts
}
