package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHost(t *testing.T) {
	tests := []struct {
		name   string
		host   string
		server string
		port   int
	}{
		{"empty", "", "localhost", 3306},
		{"server only", "db.local", "db.local", 3306},
		{"server and port", "db.local:3307", "db.local", 3307},
		{"ipv4", "10.0.0.5:13306", "10.0.0.5", 13306},
		{"bare ipv6", "::1", "::1", 3306},
		{"bracketed ipv6", "[::1]", "::1", 3306},
		{"bracketed ipv6 with port", "[fe80::1]:5000", "fe80::1", 5000},
		{"uri", "tcp://db.local:4000", "db.local", 4000},
		{"uri without port", "mysql://db.local", "db.local", 3306},
		{"surrounding space", "  db.local  ", "db.local", 3306},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, port, err := ParseHost(tt.host, 3306)
			require.NoError(t, err)
			assert.Equal(t, tt.server, server)
			assert.Equal(t, tt.port, port)
		})
	}
}

func TestParseHost_Invalid(t *testing.T) {
	for _, host := range []string{
		"db.local:abc",
		"db.local:0",
		"db.local:70000",
		":5432",
		"tcp://:5432",
		"tcp://db.local:x",
		"zz::zz::zz",
	} {
		t.Run(host, func(t *testing.T) {
			_, _, err := ParseHost(host, 5432)
			assert.ErrorIs(t, err, ErrInvalidHost)
		})
	}
}
