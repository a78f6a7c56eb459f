package config

import "maps"

// SiteConfig holds the settings for one host.
type SiteConfig struct {
	// Cookie is sent with every request to the host.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers for the host.
	Headers map[string]string `yaml:"headers,omitempty"`

	// UserAgent overrides the global User-Agent for the host.
	UserAgent string `yaml:"userAgent,omitempty"`

	// IgnorePatterns are URL path patterns. Matching subresources are not
	// archived and keep their absolute URL.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// Mode overrides the resolution mode for subresources of the host.
	Mode string `yaml:"mode,omitempty"`
}

// File is the structure of the .freezedry file.
type File struct {
	// Sites maps host names (without scheme or port) to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every host unless a site entry overrides them.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the settings for host, merged over the defaults.
// Headers are merged key by key; other fields are replaced when set.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	if len(result.Headers) > 0 {
		result.Headers = maps.Clone(result.Headers)
	}

	site, ok := cf.Sites[host]
	if !ok {
		return result
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if site.UserAgent != "" {
		result.UserAgent = site.UserAgent
	}
	if site.Mode != "" {
		result.Mode = site.Mode
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	if len(site.IgnorePatterns) > 0 {
		result.IgnorePatterns = site.IgnorePatterns
	}
	return result
}
