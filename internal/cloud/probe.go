package cloud

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"
)

// fallbackProbeAddr answers "is there a network at all" when no cloud URL
// is configured yet
const fallbackProbeAddr = "8.8.8.8:53"

// CheckConnectivity dials the cloud API host to decide whether a sync
// cycle is worth starting. Failure is a normal skip condition for the
// engine, not an error to alarm on.
func CheckConnectivity(ctx context.Context, baseURL string, timeout time.Duration) error {
	addr := probeAddr(baseURL)

	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("no route to %s: %w", addr, err)
	}
	conn.Close()
	return nil
}

func probeAddr(baseURL string) string {
	if baseURL == "" {
		return fallbackProbeAddr
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return fallbackProbeAddr
	}
	port := u.Port()
	if port == "" {
		if u.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}
