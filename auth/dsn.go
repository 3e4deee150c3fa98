package auth

import (
	"net"
	"net/url"
	"strings"

	"github.com/AndyMelnik/sensoriqua/apperr"
)

// ValidateDSN checks a login-supplied connection string. Only postgres URLs
// are accepted, and hosts that resolve to private address space are refused
// unless allowPrivate is set, so a tenant cannot point the server at
// internal infrastructure.
func ValidateDSN(dsn string, allowPrivate bool) error {
	u, err := url.Parse(strings.TrimSpace(dsn))
	if err != nil {
		return apperr.New(apperr.InvalidInput, "connection string is not a valid URL")
	}
	switch u.Scheme {
	case "postgres", "postgresql":
	default:
		return apperr.New(apperr.InvalidInput, "connection string must use the postgres scheme")
	}
	host := u.Hostname()
	if host == "" {
		return apperr.New(apperr.InvalidInput, "connection string is missing a host")
	}
	if allowPrivate {
		return nil
	}
	if isPrivateHost(host) {
		return apperr.New(apperr.InvalidInput, "connection string host is not allowed")
	}
	return nil
}

func isPrivateHost(host string) bool {
	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".local") || strings.HasSuffix(lower, ".internal") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		// Hostnames other than the blocked suffixes are resolved by the
		// driver at connect time; we only hard-block literal addresses.
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}

// MaskDSN hides the password in a connection string so it can be echoed back
// in diagnostics without leaking credentials.
func MaskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, has := u.User.Password(); !has {
		return dsn
	}
	// Rebuilt by hand: url.UserPassword would percent-encode the mask
	// characters ("%2A%2A%2A%2A").
	masked := u.Scheme + "://" + u.User.Username() + ":****@" + u.Host + u.EscapedPath()
	if u.RawQuery != "" {
		masked += "?" + u.RawQuery
	}
	return masked
}
