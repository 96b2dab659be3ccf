package request

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const UnknownIP = "unknown"

// MaxClientIPLength matches the ip_address columns. The headers are client
// controlled, so longer values are cut rather than rejected by the database.
const MaxClientIPLength = 64

// ResolveClientIP picks the first X-Forwarded-For hop, then X-Real-IP,
// and falls back to "unknown".
func ResolveClientIP(forwardedFor, realIP string) string {
	if forwardedFor != "" {
		first := strings.TrimSpace(strings.Split(forwardedFor, ",")[0])
		if first != "" {
			return truncateIP(first)
		}
	}
	if ip := strings.TrimSpace(realIP); ip != "" {
		return truncateIP(ip)
	}
	return UnknownIP
}

func truncateIP(ip string) string {
	if len(ip) > MaxClientIPLength {
		ip = ip[:MaxClientIPLength]
	}
	return strings.ToValidUTF8(ip, "")
}

// ClientIP applies ResolveClientIP to the request headers.
func ClientIP(c *fiber.Ctx) string {
	return ResolveClientIP(c.Get(fiber.HeaderXForwardedFor), c.Get("X-Real-IP"))
}
