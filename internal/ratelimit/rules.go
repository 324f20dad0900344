package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Proton-105/billsafe/pkg/config"
)

// Rules holds the per-client request budget and the paths exempt from it.
type Rules struct {
	config config.RateLimitConfig
	exempt map[string]struct{}
}

func NewRules(cfg config.RateLimitConfig, exemptPaths ...string) *Rules {
	exempt := make(map[string]struct{}, len(exemptPaths))
	for _, p := range exemptPaths {
		exempt[p] = struct{}{}
	}

	return &Rules{config: cfg, exempt: exempt}
}

func (r *Rules) Enabled() bool {
	return r != nil && r.config.Enabled
}

// PerClientLimit returns the number of requests a client may make per window.
func (r *Rules) PerClientLimit() (int, time.Duration) {
	return r.config.Requests, r.config.Window
}

func (r *Rules) IsExempt(path string) bool {
	_, ok := r.exempt[path]
	return ok
}

// ClientKey identifies the caller by the first X-Forwarded-For hop, falling
// back to the connection's remote address.
func ClientKey(req *http.Request) string {
	if fwd := req.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return "ip:" + ip
		}
	}

	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	return "ip:" + host
}
