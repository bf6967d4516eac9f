package driver

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// ErrInvalidHost is returned by Set when the host cannot be parsed.
var ErrInvalidHost = errors.New("invalid host")

// DefaultServer is used when Set receives an empty host.
const DefaultServer = "localhost"

// ParseHost splits host into server and port. It accepts "server",
// "server:port", "[v6]", "[v6]:port", a bare IPv6 address and URI forms such
// as "tcp://server:port". A missing port yields defaultPort.
func ParseHost(host string, defaultPort int) (string, int, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return DefaultServer, defaultPort, nil
	}

	if strings.Contains(host, "://") {
		u, err := url.Parse(host)
		if err != nil {
			return "", 0, fmt.Errorf("%w %q: %v", ErrInvalidHost, host, err)
		}
		if u.Hostname() == "" {
			return "", 0, fmt.Errorf("%w %q: missing server", ErrInvalidHost, host)
		}
		port, err := parsePort(u.Port(), defaultPort)
		if err != nil {
			return "", 0, fmt.Errorf("%w %q: %v", ErrInvalidHost, host, err)
		}
		return u.Hostname(), port, nil
	}

	// Bare IPv6 literal without brackets has no port.
	if strings.Count(host, ":") > 1 && !strings.HasPrefix(host, "[") {
		if net.ParseIP(host) == nil {
			return "", 0, fmt.Errorf("%w %q", ErrInvalidHost, host)
		}
		return host, defaultPort, nil
	}

	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		return strings.Trim(host, "[]"), defaultPort, nil
	}

	if !strings.Contains(host, ":") {
		return host, defaultPort, nil
	}

	server, p, err := net.SplitHostPort(host)
	if err != nil {
		return "", 0, fmt.Errorf("%w %q: %v", ErrInvalidHost, host, err)
	}
	if server == "" {
		return "", 0, fmt.Errorf("%w %q: missing server", ErrInvalidHost, host)
	}
	port, err := parsePort(p, defaultPort)
	if err != nil {
		return "", 0, fmt.Errorf("%w %q: %v", ErrInvalidHost, host, err)
	}
	return server, port, nil
}

func parsePort(s string, defaultPort int) (int, error) {
	if s == "" {
		return defaultPort, nil
	}
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("port %q is not a number", s)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range", port)
	}
	return port, nil
}
