package rpc

import (
	"net"
	"net/http"

	"github.com/Klingon-tech/powledger/config"
)

// accessPolicy is the IP allow-list and CORS origin list applied in front
// of the JSON-RPC handler. The zero value lets everything through.
type accessPolicy struct {
	allowed []*net.IPNet // Empty = allow all.
	origins []string     // Empty = no CORS headers.
}

func newAccessPolicy(cfg config.RPCConfig) accessPolicy {
	return accessPolicy{
		allowed: parseAllowedIPs(cfg.AllowedIPs),
		origins: cfg.CORSOrigins,
	}
}

// parseAllowedIPs turns IP and CIDR entries into networks. A bare IP
// becomes a single-host network; unparseable entries are skipped.
func parseAllowedIPs(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, entry := range entries {
		if _, ipNet, err := net.ParseCIDR(entry); err == nil {
			nets = append(nets, ipNet)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			continue
		}
		bits := 8 * net.IPv6len
		if ip.To4() != nil {
			bits = 8 * net.IPv4len
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets
}

// wrap rejects disallowed peers with 403, sets CORS headers and answers
// preflight requests before next sees them.
func (p accessPolicy) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !p.permits(r.RemoteAddr) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		p.setCORSHeaders(w, r.Header.Get("Origin"))
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (p accessPolicy) permits(remoteAddr string) bool {
	if len(p.allowed) == 0 {
		return true
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, n := range p.allowed {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func (p accessPolicy) setCORSHeaders(w http.ResponseWriter, origin string) {
	if len(p.origins) == 0 || origin == "" {
		return
	}
	for _, o := range p.origins {
		if o != "*" && o != origin {
			continue
		}
		w.Header().Set("Access-Control-Allow-Origin", o)
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		return
	}
}
