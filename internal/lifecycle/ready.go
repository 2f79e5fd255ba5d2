package lifecycle

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/hyperwake/hyperwake/internal/apierror"
	"github.com/hyperwake/hyperwake/internal/hyperv"
)

// PollInterval is the wait-for-ready poll cadence (spec.md §4.1: "≤ 500ms").
const PollInterval = 500 * time.Millisecond

// ResumeReadyCap and ColdBootReadyCap are the wait-for-ready overall caps
// from spec.md §4.1.
const (
	ResumeReadyCap   = 30 * time.Second
	ColdBootReadyCap = 120 * time.Second
)

// GuestPort is the default well-known guest port the wait-for-ready
// contract dials (spec.md §4.1; RDP by convention, configurable by
// callers that need a different guest service).
const GuestPort = 3389

// waitForReady blocks until driver reports an IPv4 address for name AND
// a TCP connect to ip:port succeeds, or cap elapses. Returns the
// observed IP on success.
func waitForReady(ctx context.Context, drv hyperv.Driver, name string, port int, cap time.Duration) (string, error) {
	deadline := time.Now().Add(cap)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		ip, err := tryReady(ctx, drv, name, port)
		if err == nil && ip != "" {
			return ip, nil
		}
		if time.Now().After(deadline) {
			return "", apierror.WrapError(apierror.ErrTimeout, "wait-for-ready timed out for "+name, err)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func tryReady(ctx context.Context, drv hyperv.Driver, name string, port int) (string, error) {
	ip, err := drv.QueryIP(ctx, name)
	if err != nil || ip == "" {
		return "", err
	}
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(ip, strconv.Itoa(port)), 2*time.Second)
	if err != nil {
		return "", err
	}
	_ = conn.Close()
	return ip, nil
}

// waitForGuestAgent polls the guest-side MCP agent's health endpoint,
// ported from original_source/src/hyperv/commands.rs's
// wait_for_terminator. It is the wait-for-ready contract's third,
// optional condition (SPEC_FULL.md §9), gated by Controller.guestAgentPort.
func waitForGuestAgent(ctx context.Context, ip string, port int, cap time.Duration) error {
	deadline := time.Now().Add(cap)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	url := "http://" + net.JoinHostPort(ip, strconv.Itoa(port)) + "/health"
	client := &http.Client{Timeout: 2 * time.Second}

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err == nil {
			if resp, err := client.Do(req); err == nil {
				_ = resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return nil
				}
			}
		}
		if time.Now().After(deadline) {
			return apierror.WrapError(apierror.ErrGuestNotResponding, "guest agent health probe timed out for "+ip, nil)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
