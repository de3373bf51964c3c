// Package effectiveid derives a platform-level identity from a clip URL so
// that two URLs pointing at the same media compare equal.
package effectiveid

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	lastNumeric      = regexp.MustCompile(`^.+/(\d+).*$`)
	lastAlphanumeric = regexp.MustCompile(`^.+/([A-Za-z0-9_-]+).*$`)
	mediathekGUID    = regexp.MustCompile(`[A-F0-9]{8}-[A-F0-9]{3}-[A-F0-9]{5}-[A-F0-9]{8}-[A-F0-9]{8}`)
)

type platform struct {
	hosts  []string
	derive func(raw string) (string, bool)
}

var platforms = []platform{
	{hosts: []string{"facebook."}, derive: queryOrLast("fb", "v", lastNumeric)},
	{hosts: []string{"mediathek.at"}, derive: func(raw string) (string, bool) {
		guid := mediathekGUID.FindString(raw)
		return "mediathek:" + guid, guid != ""
	}},
	{hosts: []string{"phonogrammarchiv.at", "pharchiv.local"}, derive: queryOrLast("pha", "id", lastNumeric)},
	{hosts: []string{"okto.tv"}, derive: queryOrLast("okto", "", lastNumeric)},
	{hosts: []string{"youtube.", "youtu.be"}, derive: queryOrLast("yt", "v", lastAlphanumeric)},
}

// FromURL returns the effective id of raw. URLs of unknown platforms, and
// known ones without a recognizable id, are their own effective id.
func FromURL(raw string) string {
	if raw == "" {
		return ""
	}
	host := ""
	if parsed, err := url.Parse(strings.ToLower(raw)); err == nil {
		host = parsed.Host
	}
	for _, p := range platforms {
		for _, h := range p.hosts {
			if !strings.Contains(host, h) {
				continue
			}
			if id, ok := p.derive(raw); ok {
				return id
			}
			return raw
		}
	}
	return raw
}

// queryOrLast prefers the first non-blank value of the query parameter
// param and falls back to the last path component matched by tail.
func queryOrLast(prefix, param string, tail *regexp.Regexp) func(string) (string, bool) {
	return func(raw string) (string, bool) {
		if param != "" {
			if parsed, err := url.Parse(raw); err == nil {
				for _, value := range parsed.Query()[param] {
					if value != "" {
						return prefix + ":" + value, true
					}
				}
			}
		}
		if m := tail.FindStringSubmatch(raw); m != nil {
			return prefix + ":" + m[1], true
		}
		return "", false
	}
}
