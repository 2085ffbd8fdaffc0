package p2p

import (
	"testing"

	"github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAdvertiseMultiAddrs(t *testing.T) {
	logger := createTestLogger(t)

	tests := []struct {
		name     string
		addrs    []string
		port     int
		expected []string
	}{
		{
			name:     "plain IP uses default port",
			addrs:    []string{"1.2.3.4"},
			port:     4001,
			expected: []string{"/ip4/1.2.3.4/tcp/4001"},
		},
		{
			name:     "IP with explicit port",
			addrs:    []string{"1.2.3.4:9000"},
			port:     4001,
			expected: []string{"/ip4/1.2.3.4/tcp/9000"},
		},
		{
			name:     "DNS name",
			addrs:    []string{"relay.example.com"},
			port:     4001,
			expected: []string{"/dns4/relay.example.com/tcp/4001"},
		},
		{
			name:     "DNS name with port",
			addrs:    []string{"relay.example.com:4002"},
			port:     4001,
			expected: []string{"/dns4/relay.example.com/tcp/4002"},
		},
		{
			name:     "bad port skipped",
			addrs:    []string{"1.2.3.4:notaport", "5.6.7.8"},
			port:     4001,
			expected: []string{"/ip4/5.6.7.8/tcp/4001"},
		},
		{
			name:     "empty list",
			addrs:    nil,
			port:     4001,
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := buildAdvertiseMultiAddrs(logger, tt.addrs, tt.port)

			require.Len(t, result, len(tt.expected))
			for i, expected := range tt.expected {
				assert.Equal(t, expected, result[i].String())
			}
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		addr    string
		private bool
	}{
		{addr: "/ip4/10.1.2.3/tcp/4001", private: true},
		{addr: "/ip4/172.16.0.1/tcp/4001", private: true},
		{addr: "/ip4/192.168.1.1/tcp/4001", private: true},
		{addr: "/ip4/127.0.0.1/tcp/4001", private: true},
		{addr: "/ip4/8.8.8.8/tcp/4001", private: false},
		{addr: "/ip4/172.32.0.1/tcp/4001", private: false},
		{addr: "/dns4/example.com/tcp/4001", private: false},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			maddr, err := multiaddr.NewMultiaddr(tt.addr)
			require.NoError(t, err)

			assert.Equal(t, tt.private, isPrivateIP(maddr))
		})
	}
}
