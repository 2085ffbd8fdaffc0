package p2p

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/multiformats/go-multiaddr"
)

// GetPublicIP fetches this machine's public IPv4 address from ifconfig.me.
// Useful for hosts behind NAT that want to advertise a reachable address
// next to the relay circuit.
func GetPublicIP(ctx context.Context) (string, error) {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, addr string) (net.Conn, error) {
			// tcp4 forces an IPv4 answer
			return (&net.Dialer{}).DialContext(ctx, "tcp4", addr)
		},
		TLSHandshakeTimeout: 10 * time.Second,
	}
	client := &http.Client{Transport: transport}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://ifconfig.me/ip", nil)
	if err != nil {
		return "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(body)), resp.Body.Close()
}

// buildAdvertiseMultiAddrs turns configured "host" or "host:port" strings
// into TCP multiaddrs, using defaultPort when none is given. Invalid entries
// are logged and skipped rather than failing the whole list.
func buildAdvertiseMultiAddrs(log Logger, addrs []string, defaultPort int) []multiaddr.Multiaddr {
	result := make([]multiaddr.Multiaddr, 0, len(addrs))

	for _, addr := range addrs {
		hostStr := addr
		portNum := defaultPort

		if h, p, err := net.SplitHostPort(addr); err == nil {
			pi, err := strconv.Atoi(p)
			if err != nil {
				log.Debugf("[Session] invalid port in advertise address %s: %v", addr, err)
				continue
			}

			hostStr = h
			portNum = pi
		}

		var (
			maddr multiaddr.Multiaddr
			err   error
		)

		if net.ParseIP(hostStr) != nil {
			maddr, err = multiaddr.NewMultiaddr(fmt.Sprintf(multiAddrTCPTemplate, hostStr, portNum))
		} else {
			if strings.Contains(hostStr, ":") {
				log.Debugf("[Session] invalid DNS name in advertise address %s", addr)
				continue
			}

			maddr, err = multiaddr.NewMultiaddr(fmt.Sprintf("/dns4/%s/tcp/%d", hostStr, portNum))
		}

		if err != nil {
			log.Debugf("[Session] invalid advertise address %s: %v", addr, err)
			continue
		}

		result = append(result, maddr)
	}

	return result
}

// isPrivateIP reports whether a multiaddr points at an RFC 1918 private
// range or loopback IPv4 address.
func isPrivateIP(addr multiaddr.Multiaddr) bool {
	ipStr, err := addr.ValueForProtocol(multiaddr.P_IP4)
	if err != nil {
		return false
	}

	ip := net.ParseIP(ipStr)
	if ip == nil || ip.To4() == nil {
		return false
	}

	privateRanges := []*net.IPNet{
		{IP: net.ParseIP("10.0.0.0"), Mask: net.CIDRMask(8, 32)},
		{IP: net.ParseIP("172.16.0.0"), Mask: net.CIDRMask(12, 32)},
		{IP: net.ParseIP("192.168.0.0"), Mask: net.CIDRMask(16, 32)},
		{IP: net.ParseIP("127.0.0.0"), Mask: net.CIDRMask(8, 32)},
	}

	for _, r := range privateRanges {
		if r.Contains(ip) {
			return true
		}
	}

	return false
}
