package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nao1215/freezedry/internal/archive"
	"github.com/nao1215/freezedry/internal/browser"
	"github.com/nao1215/freezedry/internal/cache"
	"github.com/nao1215/freezedry/internal/config"
	"github.com/nao1215/freezedry/internal/database"
	"github.com/nao1215/freezedry/internal/fetch"
	"github.com/nao1215/freezedry/internal/log"
	"github.com/nao1215/freezedry/internal/metrics"
	"github.com/nao1215/freezedry/internal/model"
	"github.com/nao1215/freezedry/internal/pipeline"
	"github.com/nao1215/freezedry/internal/policy"
	"github.com/nao1215/freezedry/internal/report"
	"github.com/nao1215/freezedry/internal/resource"
	"github.com/nao1215/freezedry/internal/tor"
)

// NewArchiveCmd creates the archive command.
func NewArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive [url]...",
		Short: "Archive web pages as static HTML documents",
		Long: `Archive downloads each page with its stylesheets, images, fonts and
frames, removes scripts, and writes one static HTML document per page.

Subresources that cannot be fetched keep their absolute URL, so a
partially archived page still renders what it can.

Examples:
  # Archive a page to stdout
  freezedry archive https://example.com/

  # Archive to a file
  freezedry archive -o example.html https://example.com/

  # Archive several pages into a directory
  freezedry archive -o archives/ https://example.com/ https://example.org/

  # Keep subresources as files next to the document
  freezedry archive --mode directory -o page.html https://example.com/

  # Archive the DOM after scripts ran, using headless Chrome
  freezedry archive --browser -o app.html https://app.example.com/

  # Archive an onion service through an embedded Tor daemon
  freezedry archive --tor -o onion.html http://exampleonion.onion/

Configuration file (.freezedry) example:
  sites:
    example.com:
      cookie: "session_id=abc123"
      ignorePatterns:
        - "*.mp4"
    cdn.example.net:
      mode: absolute`,
		Args: cobra.ArbitraryArgs,
		RunE: runArchiveCmd,
	}

	// Output flags
	cmd.Flags().StringP("output", "o", "",
		"Output file, or directory when archiving several URLs (default: stdout)")
	cmd.Flags().StringP("mode", "M", config.DefaultMode,
		"Subresource resolution mode: inline, directory or absolute")
	cmd.Flags().String("csp", "",
		"Content-Security-Policy for the archived document (default: block all network access)")
	cmd.Flags().Bool("no-memento", false,
		"Do not add the Memento-Datetime and original URL tags")
	cmd.Flags().Bool("keep-original-attributes", false,
		"Keep rewritten attribute values in data-original-* attributes")
	cmd.Flags().Bool("dedup", false,
		"Download each URL once per page even when several links reach it")

	// Fetch flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().Int("concurrency", config.DefaultConcurrency,
		"Number of concurrent requests")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of pages archived at once")
	cmd.Flags().IntP("max-depth", "d", config.DefaultMaxDepth,
		"Maximum nesting of frames and stylesheet imports")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum size of a single response body in bytes")
	cmd.Flags().StringP("user-agent", "A", config.DefaultUserAgent,
		"User-Agent header for requests")

	// Proxy flags
	cmd.Flags().String("proxy", "",
		"Fetch through the SOCKS5 proxy at this address (e.g., 127.0.0.1:9050)")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and fetch through it")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Browser flags
	cmd.Flags().Bool("browser", false,
		"Load pages in headless Chrome and archive the DOM after scripts ran")
	cmd.Flags().Duration("browser-settle", config.DefaultBrowserSettle,
		"How long a page runs in the browser before it is archived")

	// Cache flags
	cmd.Flags().String("cache-dir", config.XDGCacheDir(),
		"Directory of the response cache and capture history")
	cmd.Flags().Bool("no-cache", false,
		"Do not read or write the response cache")
	cmd.Flags().Duration("cache-max-age", config.DefaultCacheMaxAge,
		"How long cached responses are reused")
	cmd.Flags().String("redis", "",
		"Use the redis server at this address as response cache (host:port or redis:// URL)")
	cmd.Flags().String("metrics-file", "",
		"Write prometheus metrics to this file")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .freezedry in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("report-file", "r", "",
		"Write the report to this file instead of stderr")

	return cmd
}

func runArchiveCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runArchive(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()
	var err error

	if cfg.Output, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.Mode, err = flags.GetString("mode"); err != nil {
		return nil, err
	}
	if cfg.ContentSecurityPolicy, err = flags.GetString("csp"); err != nil {
		return nil, err
	}
	if cfg.NoMemento, err = flags.GetBool("no-memento"); err != nil {
		return nil, err
	}
	if cfg.KeepOriginalAttributes, err = flags.GetBool("keep-original-attributes"); err != nil {
		return nil, err
	}
	if cfg.Dedup, err = flags.GetBool("dedup"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.MaxDepth, err = flags.GetInt("max-depth"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.UseBrowser, err = flags.GetBool("browser"); err != nil {
		return nil, err
	}
	if cfg.BrowserSettle, err = flags.GetDuration("browser-settle"); err != nil {
		return nil, err
	}
	if cfg.CacheDir, err = flags.GetString("cache-dir"); err != nil {
		return nil, err
	}
	if cfg.NoCache, err = flags.GetBool("no-cache"); err != nil {
		return nil, err
	}
	if cfg.CacheMaxAge, err = flags.GetDuration("cache-max-age"); err != nil {
		return nil, err
	}
	if cfg.RedisURL, err = flags.GetString("redis"); err != nil {
		return nil, err
	}
	if cfg.MetricsFile, err = flags.GetString("metrics-file"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("report-file"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	if cfg.SiteConfigs, err = loadSiteConfigs(cfg.ConfigFilePath); err != nil {
		return nil, err
	}

	for _, arg := range args {
		target, err := normalizeTarget(arg)
		if err != nil {
			return nil, err
		}
		cfg.Targets = append(cfg.Targets, target)
	}
	return cfg, nil
}

// loadSiteConfigs loads the site file. An explicitly given path must
// exist; otherwise a missing file means no site settings.
func loadSiteConfigs(explicitPath string) (*config.File, error) {
	configPath := config.FindConfigFile(explicitPath)
	if configPath == "" {
		if explicitPath != "" {
			return nil, fmt.Errorf("configuration file not found: %s", explicitPath)
		}
		return &config.File{Sites: make(map[string]config.SiteConfig)}, nil
	}
	sites, err := config.LoadConfigFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	return sites, nil
}

// normalizeTarget returns the absolute http(s) URL for a command line
// argument. A bare host name is taken as https.
func normalizeTarget(arg string) (string, error) {
	if !strings.Contains(arg, "://") {
		arg = "https://" + arg
	}
	u, err := url.Parse(arg)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", arg, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid URL %q: scheme must be http or https", arg)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid URL %q: missing host", arg)
	}
	return u.String(), nil
}

// runArchive archives every target and reports the outcome. It fails when
// any capture failed.
func runArchive(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) error {
	logger.Info("starting archive",
		"targets", cfg.Targets,
		"mode", cfg.Mode,
		"batchSize", cfg.BatchSize,
		"browser", cfg.UseBrowser,
	)

	client, stopTor, err := setupProxy(ctx, cfg, logger, stderr)
	if err != nil {
		return err
	}
	defer stopTor()

	db, err := database.Open(cfg.CacheDir, database.Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
		MaxAge:            cfg.CacheMaxAge,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	logger.Info("database opened", "path", db.Path())

	m := metrics.New()

	fetchOpts := []fetch.Option{
		fetch.WithProxy(client),
		fetch.WithConcurrency(cfg.Concurrency),
		fetch.WithRecorder(m),
		fetch.WithSites(siteFunc(cfg.SiteConfigs)),
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithLogger(logger),
	}
	responseCache, closeCache, err := setupCache(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	defer closeCache()
	if responseCache != nil {
		fetchOpts = append(fetchOpts, fetch.WithCache(responseCache))
	}
	fetcher := fetch.New(fetchOpts...)

	archiverOpts := []archive.Option{
		archive.WithSettings(archive.Settings{
			ContentSecurityPolicy:  cfg.ContentSecurityPolicy,
			Memento:                !cfg.NoMemento,
			KeepOriginalAttributes: cfg.KeepOriginalAttributes,
			Dedup:                  cfg.Dedup,
			MaxDepth:               cfg.MaxDepth,
		}),
		archive.WithLogger(logger),
	}
	if cfg.UseBrowser {
		opts := []browser.Option{
			browser.WithUserAgent(cfg.UserAgent),
			browser.WithSettle(cfg.BrowserSettle),
			browser.WithLogger(logger),
		}
		if client != nil {
			opts = append(opts, browser.WithProxy(client.ProxyAddress()))
		}
		b, err := browser.New(opts...)
		if err != nil {
			return fmt.Errorf("failed to start browser: %w", err)
		}
		defer b.Close()
		archiverOpts = append(archiverOpts, archive.WithLiveSource(browserOpener(b, cfg.SiteConfigs)))
	}
	archiver := archive.New(fetcher, archiverOpts...)

	jobs := newJobs(cfg)
	resolvers := resolverFactory(cfg, logger)

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			p := pipeline.New(
				pipeline.WithLogger(logger),
				pipeline.WithContinueOnError(true),
			)
			p.AddSteps(
				pipeline.NewCaptureStep(archiver, resolvers),
				pipeline.NewWriteStep(pipeline.WithStdout(stdout), pipeline.WithWriteLogger(logger)),
				pipeline.NewHistoryStep(db),
				pipeline.NewMetricsStep(m),
			)
			return p
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	startTime := time.Now()
	var mu sync.Mutex
	done := 0
	batchErr := bp.ProcessBatchWithCallback(ctx, jobs, func(job *pipeline.Job, _ int) {
		mu.Lock()
		defer mu.Unlock()
		done++
		status := "archived"
		if !job.Capture.Succeeded() {
			status = "failed"
		}
		fmt.Fprintf(stderr, "[%d/%d] %s %s\n", done, len(jobs), status, job.Capture.URL)
	})
	logger.Info("archive finished", "elapsed", time.Since(startTime).Round(time.Millisecond))

	captures := make([]*model.Capture, len(jobs))
	for i, job := range jobs {
		captures[i] = job.Capture
	}
	if err := outputReport(cfg, captures, stderr); err != nil {
		logger.Error("report failed", "error", err)
	}
	if cfg.MetricsFile != "" {
		if err := m.WriteToTextfile(cfg.MetricsFile); err != nil {
			logger.Error("failed to write metrics", "error", err)
		}
	}

	if batchErr != nil {
		return batchErr
	}
	failed := 0
	for _, c := range captures {
		if !c.Succeeded() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d captures failed", failed, len(captures))
	}
	return nil
}

// setupProxy returns the SOCKS5 client fetches go through, or nil for
// direct connections. The returned func stops an embedded daemon.
func setupProxy(ctx context.Context, cfg *config.Config, logger *slog.Logger, stderr io.Writer) (*tor.Client, func(), error) {
	nop := func() {}
	switch {
	case cfg.UseTor:
		return startEmbeddedTor(ctx, cfg, logger, stderr)
	case cfg.ProxyAddress != "":
		client, err := tor.NewClient(cfg.ProxyAddress)
		if err != nil {
			return nil, nop, fmt.Errorf("failed to create proxy client: %w", err)
		}
		if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
			return nil, nop, fmt.Errorf("proxy check failed: %w (make sure a SOCKS5 proxy is running at %s)",
				status.Err(), cfg.ProxyAddress)
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
		return client, nop, nil
	default:
		return nil, nop, nil
	}
}

// startEmbeddedTor starts a Tor daemon and returns a client for it.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, logger *slog.Logger, stderr io.Writer) (*tor.Client, func(), error) {
	fmt.Fprintln(stderr, "Starting embedded Tor daemon...")
	fmt.Fprintf(stderr, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	daemon := tor.NewEmbedded(tor.WithStartupTimeout(cfg.TorStartupTimeout))
	if err := daemon.Start(ctx); err != nil {
		return nil, func() {}, fmt.Errorf("failed to start embedded Tor: %w", err)
	}
	stop := func() {
		logger.Info("stopping embedded Tor daemon...")
		if err := daemon.Stop(); err != nil {
			logger.Error("failed to stop embedded Tor", "error", err)
		}
	}
	logger.Info("embedded Tor daemon started", "socksAddr", daemon.SocksAddr())

	client, err := daemon.Client()
	if err != nil {
		stop()
		return nil, func() {}, fmt.Errorf("failed to create Tor client: %w", err)
	}
	if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
		stop()
		return nil, func() {}, fmt.Errorf("embedded Tor proxy check failed: %w", status.Err())
	}
	fmt.Fprintf(stderr, "Embedded Tor daemon started (SOCKS proxy: %s)\n\n", daemon.SocksAddr())
	return client, stop, nil
}

// setupCache selects the response cache: none, redis, or the sqlite
// database. Expired sqlite entries are purged first.
func setupCache(ctx context.Context, cfg *config.Config, db *database.ArchiveDB, logger *slog.Logger) (fetch.Cache, func(), error) {
	nop := func() {}
	switch {
	case cfg.NoCache:
		return nil, nop, nil
	case cfg.RedisURL != "":
		rc, err := cache.Dial(ctx, cfg.RedisURL, cache.WithTTL(cfg.CacheMaxAge))
		if err != nil {
			return nil, nop, err
		}
		logger.Info("using redis response cache")
		return rc, func() { _ = rc.Close() }, nil
	default:
		if cfg.CacheMaxAge > 0 {
			n, err := db.PurgeResponses(ctx, time.Now().Add(-cfg.CacheMaxAge))
			if err != nil {
				logger.Warn("failed to purge expired responses", "error", err)
			} else if n > 0 {
				logger.Debug("purged expired responses", "count", n)
			}
		}
		return db, nop, nil
	}
}

// siteFunc adapts the site file to the fetcher.
func siteFunc(sites *config.File) fetch.SiteFunc {
	return func(host string) fetch.Site {
		if sites == nil {
			return fetch.Site{}
		}
		sc := sites.GetSiteConfig(host)
		return fetch.Site{
			Headers:   sc.Headers,
			Cookie:    sc.Cookie,
			UserAgent: sc.UserAgent,
		}
	}
}

// ruleFunc adapts the site file to the resolution policy. Modes were
// validated when the file was loaded.
func ruleFunc(sites *config.File) policy.RuleFunc {
	return func(host string) policy.Rule {
		if sites == nil {
			return policy.Rule{}
		}
		sc := sites.GetSiteConfig(host)
		rule := policy.Rule{IgnorePatterns: sc.IgnorePatterns}
		if mode, err := policy.ParseMode(sc.Mode); err == nil && sc.Mode != "" {
			rule.Mode = mode
		}
		return rule
	}
}

// resolverFactory builds the policy of each job. Files of the directory
// mode go next to the job's output file.
func resolverFactory(cfg *config.Config, logger *slog.Logger) pipeline.ResolverFactory {
	return func(job *pipeline.Job) (resource.Resolver, error) {
		mode, err := policy.ParseMode(cfg.Mode)
		if err != nil {
			return nil, err
		}
		opts := []policy.Option{
			policy.WithRules(ruleFunc(cfg.SiteConfigs)),
			policy.WithLogger(logger),
		}
		if job.Capture.OutputPath != "" {
			opts = append(opts, policy.WithDirectory(policy.SiblingDirectory(job.Capture.OutputPath)))
		}
		return policy.New(mode, opts...)
	}
}

// browserOpener loads pages in b with the headers of the page's host.
func browserOpener(b *browser.Browser, sites *config.File) archive.Opener {
	return func(ctx context.Context, rawURL string) (archive.LivePage, error) {
		var headers map[string]string
		if u, err := url.Parse(rawURL); err == nil && sites != nil {
			sc := sites.GetSiteConfig(u.Hostname())
			headers = sc.Headers
			if sc.Cookie != "" {
				if headers == nil {
					headers = make(map[string]string, 1)
				}
				headers["Cookie"] = sc.Cookie
			}
		}
		page, err := b.Open(ctx, rawURL, headers)
		if err != nil {
			return nil, err
		}
		return page, nil
	}
}

// newJobs creates one job per target. Several targets are written into
// the output directory under names derived from their URLs.
func newJobs(cfg *config.Config) []*pipeline.Job {
	intoDir := len(cfg.Targets) > 1 || isDir(cfg.Output)
	jobs := make([]*pipeline.Job, 0, len(cfg.Targets))
	for _, target := range cfg.Targets {
		c := model.NewCapture(uuid.NewString(), target, time.Time{})
		c.Mode = cfg.Mode
		c.OutputPath = cfg.Output
		if intoDir {
			c.OutputPath = filepath.Join(cfg.Output, archive.OutputName(target))
		}
		jobs = append(jobs, &pipeline.Job{Capture: c})
	}
	return jobs
}

func isDir(path string) bool {
	if path == "" {
		return false
	}
	if strings.HasSuffix(path, string(filepath.Separator)) {
		return true
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// outputReport writes the capture report in the requested format.
func outputReport(cfg *config.Config, captures []*model.Capture, stderr io.Writer) error {
	output := stderr
	if cfg.ReportFile != "" {
		if dir := filepath.Dir(cfg.ReportFile); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create report directory: %w", err)
			}
		}
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()
		output = f
	}

	var w report.Writer
	switch {
	case cfg.JSONReport:
		w = report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		w = report.NewMarkdownWriter(output)
	default:
		w = report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}

	var err error
	if len(captures) == 1 {
		_, err = w.Write(captures[0])
	} else {
		_, err = w.WriteAll(captures)
	}
	return err
}
