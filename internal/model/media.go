package model

import (
	"net/url"
	"path"
	"strings"
)

// UserUploadPrefix is the public URL prefix under which userID's uploads live.
func UserUploadPrefix(base, userID string) string {
	return strings.TrimRight(base, "/") + "/uploads/" + userID
}

// MediaURLUnder reports whether rawURL points below one of bases. Only plain
// http(s) URLs without credentials or dot segments match.
func MediaURLUnder(rawURL string, bases ...string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.User != nil || u.Host == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if u.Path == "" || path.Clean(u.Path) != u.Path {
		return false
	}
	for _, base := range bases {
		base = strings.TrimRight(base, "/")
		if base != "" && strings.HasPrefix(rawURL, base+"/") {
			return true
		}
	}
	return false
}
