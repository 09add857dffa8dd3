package utils

import (
	"net"
	"strings"
)

// IPAllowed reports whether ip matches one of the allow entries. Entries are
// plain addresses or CIDR blocks. An empty list allows everything.
func IPAllowed(ip string, allow []string) bool {
	if len(allow) == 0 {
		return true
	}

	addr := net.ParseIP(strings.TrimSpace(ip))
	if addr == nil {
		return false
	}

	for _, entry := range allow {
		if strings.Contains(entry, "/") {
			_, block, err := net.ParseCIDR(entry)
			if err != nil {
				continue
			}
			if block.Contains(addr) {
				return true
			}
			continue
		}
		if other := net.ParseIP(entry); other != nil && other.Equal(addr) {
			return true
		}
	}
	return false
}
