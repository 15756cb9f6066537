package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"agora_go/internal/core/config"
	"agora_go/internal/core/logger"
)

// IPWhitelistConfig IP whitelist configuration
type IPWhitelistConfig struct {
	AllowIPs []string // allowed IPs, CIDR supported
	DenyIPs  []string // denied IPs
}

// ipChecker compiled allow/deny lists
type ipChecker struct {
	allowNets []*net.IPNet
	denyNets  []*net.IPNet
	allowSet  map[string]bool
	denySet   map[string]bool
}

func newIPChecker(cfg *IPWhitelistConfig) *ipChecker {
	c := &ipChecker{
		allowSet: make(map[string]bool),
		denySet:  make(map[string]bool),
	}

	for _, ip := range cfg.AllowIPs {
		ip = strings.TrimSpace(ip)
		if ip == "" {
			continue
		}
		if _, n, err := net.ParseCIDR(ip); err == nil {
			c.allowNets = append(c.allowNets, n)
		} else {
			c.allowSet[ip] = true
		}
	}

	for _, ip := range cfg.DenyIPs {
		ip = strings.TrimSpace(ip)
		if ip == "" {
			continue
		}
		if _, n, err := net.ParseCIDR(ip); err == nil {
			c.denyNets = append(c.denyNets, n)
		} else {
			c.denySet[ip] = true
		}
	}

	return c
}

// isLocalIP reports whether the address is loopback or RFC1918, IPv4 or
// IPv6.
func isLocalIP(ipStr string) bool {
	if ipStr == "localhost" || ipStr == "127.0.0.1" || ipStr == "::1" {
		return true
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}

	if ipv4 := ip.To4(); ipv4 != nil {
		if ipv4[0] == 192 && ipv4[1] == 168 {
			return true
		}
		if ipv4[0] == 10 {
			return true
		}
		if ipv4[0] == 172 && ipv4[1] >= 16 && ipv4[1] <= 31 {
			return true
		}
		if ipv4[0] == 127 {
			return true
		}
	}

	return ip.IsLoopback()
}

func (c *ipChecker) isAllowed(ipStr string) bool {
	if isLocalIP(ipStr) {
		if c.allowSet[ipStr] {
			return true
		}
		// empty whitelist means local traffic passes
		if len(c.allowSet) == 0 && len(c.allowNets) == 0 {
			return true
		}
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}

	for _, n := range c.denyNets {
		if n.Contains(ip) {
			return false
		}
	}
	if c.denySet[ipStr] {
		return false
	}

	for _, n := range c.allowNets {
		if n.Contains(ip) {
			return true
		}
	}
	return c.allowSet[ipStr]
}

// PublicWhitelistMW public API whitelist.
// Local and RFC1918 addresses pass; with no configured lists everything
// passes; otherwise external callers must be whitelisted.
func PublicWhitelistMW() gin.HandlerFunc {
	cfg := config.Get()
	whitelistCfg := &IPWhitelistConfig{
		AllowIPs: cfg.Security.AllowIPs,
		DenyIPs:  cfg.Security.DenyIPs,
	}
	checker := newIPChecker(whitelistCfg)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		if isLocalIP(clientIP) {
			c.Next()
			return
		}
		if len(whitelistCfg.AllowIPs) == 0 && len(whitelistCfg.DenyIPs) == 0 {
			c.Next()
			return
		}
		if !checker.isAllowed(clientIP) {
			logger.Warn("public IP blocked by whitelist",
				logger.String("ip", clientIP),
				logger.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code": 403,
				"msg":  "access denied: IP not in whitelist",
			})
			return
		}

		c.Next()
	}
}

// AdminWhitelistMW management API whitelist.
// Local and RFC1918 addresses pass, explicitly whitelisted IPs pass,
// everything else is rejected.
func AdminWhitelistMW() gin.HandlerFunc {
	cfg := config.Get()
	whitelistCfg := &IPWhitelistConfig{
		AllowIPs: cfg.Security.AllowIPs,
		DenyIPs:  cfg.Security.DenyIPs,
	}
	checker := newIPChecker(whitelistCfg)

	allowed := func(ip string) bool {
		return isLocalIP(ip) || checker.isAllowed(ip)
	}

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		realIP := c.GetHeader("X-Real-IP")

		// behind a proxy X-Real-IP carries the caller
		if realIP != "" && allowed(realIP) {
			c.Next()
			return
		}
		if allowed(clientIP) {
			c.Next()
			return
		}

		logger.Warn("admin access denied: IP not in whitelist",
			logger.String("ip", clientIP),
			logger.String("real_ip", realIP),
			logger.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"code": 403,
			"msg":  "access denied: IP not in whitelist",
		})
	}
}

// IPLimiter sliding-window per-IP rate limiter
type IPLimiter struct {
	mu     sync.Mutex
	visits map[string][]int64
	limit  int
	window int64
}

// NewIPLimiter creates an IPLimiter
func NewIPLimiter(limit int, windowSeconds int) *IPLimiter {
	return &IPLimiter{
		visits: make(map[string][]int64),
		limit:  limit,
		window: int64(windowSeconds),
	}
}

// Allow records a visit and reports whether it is within the limit
func (l *IPLimiter) Allow(ip string) bool {
	now := time.Now().Unix()

	l.mu.Lock()
	defer l.mu.Unlock()

	var valid []int64
	for _, ts := range l.visits[ip] {
		if now-ts < l.window {
			valid = append(valid, ts)
		}
	}
	l.visits[ip] = valid

	if len(l.visits[ip]) >= l.limit {
		return false
	}

	l.visits[ip] = append(l.visits[ip], now)
	return true
}

// RateLimitMW rate limiting middleware
func RateLimitMW(limiter *IPLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		if !limiter.Allow(ip) {
			logger.Warn("rate limit exceeded",
				logger.String("ip", ip),
				logger.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code": 429,
				"msg":  "too many requests",
			})
			return
		}

		c.Next()
	}
}
