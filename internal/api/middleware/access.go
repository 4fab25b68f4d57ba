package middleware

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
)

// LoopbackOnly rejects requests that do not originate from this machine.
// The agent holds the user's credential and must not be reachable remotely
// even when bound to a wider address by mistake.
//
// Besides the peer address the Host header must name a loopback host, which
// defeats DNS rebinding, and a browser Origin, when sent, must be a loopback
// origin. When port is non-empty the Host header must also carry that port.
func LoopbackOnly(port string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !loopbackPeer(req.RemoteAddr) || !loopbackHost(req.Host, port) || !loopbackOrigin(req.Header.Get(echo.HeaderOrigin)) {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

func loopbackPeer(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func loopbackHost(hostport, port string) bool {
	host, p, err := net.SplitHostPort(hostport)
	if err != nil {
		host, p = strings.Trim(hostport, "[]"), ""
	}
	if port != "" && p != port {
		return false
	}
	return loopbackName(host)
}

func loopbackOrigin(origin string) bool {
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	return loopbackName(u.Hostname())
}

func loopbackName(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
