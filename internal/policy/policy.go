package policy

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/nao1215/freezedry/internal/resource"
)

// Mode is a resolution mode.
type Mode string

const (
	// ModeInline embeds subresources as data URLs.
	ModeInline Mode = "inline"
	// ModeDirectory writes subresources to sibling files.
	ModeDirectory Mode = "directory"
	// ModeAbsolute leaves subresources on the web.
	ModeAbsolute Mode = "absolute"
)

// ParseMode parses a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeInline, ModeDirectory, ModeAbsolute:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Rule customizes resolution of the subresources of one host.
type Rule struct {
	// Mode overrides the default mode when not empty.
	Mode Mode

	// IgnorePatterns are matched against the URL path with MatchPattern.
	// A subresource whose path matches any of them keeps its absolute URL.
	IgnorePatterns []string
}

// RuleFunc returns the rule for a host.
type RuleFunc func(host string) Rule

// Policy is a resource.Resolver applying a mode and per-host rules.
type Policy struct {
	mode   Mode
	dir    *Directory
	rules  RuleFunc
	logger *slog.Logger
}

// Option configures a Policy.
type Option func(*Policy)

// WithDirectory sets the file store used by the directory mode.
func WithDirectory(dir *Directory) Option {
	return func(p *Policy) {
		p.dir = dir
	}
}

// WithRules sets the per-host rules.
func WithRules(rules RuleFunc) Option {
	return func(p *Policy) {
		p.rules = rules
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Policy) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New returns a policy with the given default mode.
func New(mode Mode, opts ...Option) (*Policy, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	p := &Policy{
		mode:   mode,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	if mode == ModeDirectory && p.dir == nil {
		return nil, ErrNoDirectory
	}
	return p, nil
}

// Mode returns the default mode.
func (p *Policy) Mode() Mode {
	return p.mode
}

// ResolveURL implements resource.Resolver.
func (p *Policy) ResolveURL(ctx context.Context, r *resource.Resource) (string, error) {
	mode, ignored := p.ruleFor(r.URL())
	if ignored {
		p.logger.Debug("subresource ignored by site rule", slog.String("url", r.URL()))
		return r.URL(), nil
	}

	switch mode {
	case ModeAbsolute:
		return r.URL(), nil
	case ModeInline:
		blob, err := r.Blob(ctx)
		if err != nil {
			return "", err
		}
		return DataURL(blob.Type, blob.Data), nil
	case ModeDirectory:
		if p.dir == nil {
			return "", &resource.LinkResolutionError{URL: r.URL(), Err: ErrNoDirectory}
		}
		blob, err := r.Blob(ctx)
		if err != nil {
			return "", err
		}
		name, err := p.dir.Store(r.URL(), blob.Type, blob.Data)
		if err != nil {
			return "", &resource.LinkResolutionError{URL: r.URL(), Err: err}
		}
		if parent := r.Parent(); parent != nil && parent.IsRoot() {
			return p.dir.Prefix + name, nil
		}
		return name, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// ruleFor returns the mode for rawURL and whether it is ignored.
func (p *Policy) ruleFor(rawURL string) (Mode, bool) {
	if p.rules == nil {
		return p.mode, false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return p.mode, false
	}
	rule := p.rules(u.Hostname())
	for _, pattern := range rule.IgnorePatterns {
		if MatchPattern(pattern, u.Path) {
			return "", true
		}
	}
	if rule.Mode != "" {
		return rule.Mode, false
	}
	return p.mode, false
}
