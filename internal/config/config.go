package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/freezedry/internal/policy"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "freezedry"

	// DefaultMode embeds every subresource, so an archive is one file.
	DefaultMode = string(policy.ModeInline)

	// DefaultTimeout bounds each HTTP request.
	DefaultTimeout = 30 * time.Second

	// DefaultConcurrency is the number of fetches in flight per run.
	DefaultConcurrency = 8

	// DefaultBatchSize is the number of documents captured at once.
	DefaultBatchSize = 4

	// DefaultMaxDepth bounds frame and @import nesting.
	DefaultMaxDepth = 8

	// DefaultMaxBodySize limits a single response body.
	DefaultMaxBodySize = 50 * 1024 * 1024

	// DefaultUserAgent identifies the archiver in HTTP requests.
	DefaultUserAgent = "freezedry/1.0 (+https://github.com/nao1215/freezedry)"

	// DefaultTorStartupTimeout bounds bootstrap of the embedded Tor daemon.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultCacheMaxAge is how long cached responses are served.
	DefaultCacheMaxAge = 24 * time.Hour

	// DefaultBrowserSettle is how long a page runs in the browser before
	// it is snapshotted.
	DefaultBrowserSettle = 2 * time.Second
)

// Config holds the options of one archive run. It is filled from CLI
// flags and passed down explicitly.
type Config struct {
	// Targets are the document URLs to archive.
	Targets []string

	// Output is the output file for a single target, or a directory when
	// there are several. Empty means stdout.
	Output string

	// Mode is the default resolution mode: inline, directory or absolute.
	Mode string

	// ContentSecurityPolicy replaces the default policy when not empty.
	ContentSecurityPolicy string

	// NoMemento disables the memento provenance tags.
	NoMemento bool

	// KeepOriginalAttributes keeps rewritten values in data-original-*.
	KeepOriginalAttributes bool

	// Dedup downloads a URL once per capture even when several links
	// reach it.
	Dedup bool

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// Concurrency is the number of fetches in flight.
	Concurrency int

	// BatchSize is the number of documents captured at once.
	BatchSize int

	// MaxDepth bounds frame and @import nesting.
	MaxDepth int

	// MaxBodySize limits a single response body. Zero means the default.
	MaxBodySize int64

	// UserAgent is sent with every request unless a site overrides it.
	UserAgent string

	// ProxyAddress is a SOCKS5 proxy ("host:port") for all fetches.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and fetches through it.
	UseTor bool

	// TorStartupTimeout bounds bootstrap of the embedded daemon.
	TorStartupTimeout time.Duration

	// UseBrowser loads the root document in headless Chrome and archives
	// the DOM after its scripts ran.
	UseBrowser bool

	// BrowserSettle is how long the page runs before the snapshot.
	BrowserSettle time.Duration

	// CacheDir holds the sqlite response cache and capture history.
	CacheDir string

	// NoCache disables the response cache. History is still recorded.
	NoCache bool

	// CacheMaxAge is how long cached responses are served.
	CacheMaxAge time.Duration

	// RedisURL selects a shared redis response cache instead of sqlite.
	RedisURL string

	// MetricsFile receives prometheus metrics in the text format.
	MetricsFile string

	// JSONReport and MarkdownReport select the capture report format.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile receives the report instead of stderr.
	ReportFile string

	// ConfigFilePath is an explicit .freezedry file.
	ConfigFilePath string

	// SiteConfigs holds the loaded site file. Nil when there is none.
	SiteConfigs *File

	// Verbose enables debug logging.
	Verbose bool
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		Mode:              DefaultMode,
		Timeout:           DefaultTimeout,
		Concurrency:       DefaultConcurrency,
		BatchSize:         DefaultBatchSize,
		MaxDepth:          DefaultMaxDepth,
		MaxBodySize:       DefaultMaxBodySize,
		UserAgent:         DefaultUserAgent,
		TorStartupTimeout: DefaultTorStartupTimeout,
		BrowserSettle:     DefaultBrowserSettle,
		CacheDir:          XDGCacheDir(),
		CacheMaxAge:       DefaultCacheMaxAge,
	}
}

// XDGDataDir returns the XDG data directory for freezedry.
// On Linux: ~/.local/share/freezedry
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for freezedry.
// On Linux: ~/.config/freezedry
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for freezedry.
// On Linux: ~/.cache/freezedry
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.MaxDepth <= 0 {
		return ErrInvalidMaxDepth
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingProxies
	}
	mode, err := policy.ParseMode(c.Mode)
	if err != nil {
		return err
	}
	if mode == policy.ModeDirectory && c.Output == "" {
		return ErrDirectoryNeedsOutput
	}
	if len(c.Targets) > 1 && c.Output == "" {
		return ErrMultipleTargetsNeedOutput
	}
	return nil
}
