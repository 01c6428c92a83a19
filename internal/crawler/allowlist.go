package crawler

import (
	"net/url"
	"strings"
)

// DomainAllowlist stores exact hosts and suffix wildcards derived from configuration.
type DomainAllowlist struct {
	exact    map[string]struct{}
	suffixes []string
}

// NewDomainAllowlist builds an allowlist. Entries are exact hosts, "*.suffix"
// or ".suffix". A bare entry also admits its "www." variant. It returns nil
// when no patterns survive trimming; a nil allowlist admits every host.
func NewDomainAllowlist(patterns []string) *DomainAllowlist {
	matcher := &DomainAllowlist{
		exact: make(map[string]struct{}),
	}
	for _, raw := range patterns {
		value := strings.TrimSpace(strings.ToLower(raw))
		if value == "" {
			continue
		}
		switch {
		case strings.HasPrefix(value, "*."):
			if suffix := strings.TrimPrefix(value, "*."); suffix != "" {
				matcher.addSuffix(suffix)
			}
		case strings.HasPrefix(value, "."):
			if suffix := strings.TrimPrefix(value, "."); suffix != "" {
				matcher.addSuffix(suffix)
			}
		default:
			matcher.exact[value] = struct{}{}
			matcher.exact["www."+strings.TrimPrefix(value, "www.")] = struct{}{}
		}
	}
	if len(matcher.exact) == 0 && len(matcher.suffixes) == 0 {
		return nil
	}
	return matcher
}

func (a *DomainAllowlist) addSuffix(suffix string) {
	for _, existing := range a.suffixes {
		if existing == suffix {
			return
		}
	}
	a.suffixes = append(a.suffixes, suffix)
}

// AllowsHost reports whether host is admitted.
func (a *DomainAllowlist) AllowsHost(host string) bool {
	if a == nil {
		return true
	}
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "" {
		return false
	}
	if _, exact := a.exact[host]; exact {
		return true
	}
	for _, suffix := range a.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

// AllowsURL reports whether rawURL is an http(s) URL on an admitted host.
func (a *DomainAllowlist) AllowsURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return a.AllowsHost(u.Hostname())
}
