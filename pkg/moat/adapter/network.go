package adapter

import (
	"net"
	"strings"
)

// isPrivateIP reports whether ip is loopback, private, link-local, or
// otherwise reserved — ported from
// original_source/services/gateway/app/adapters/network_utils.py's
// ipaddress-based checks onto Go's net package.
func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	// IsPrivate() covers the RFC 1918 ranges and IPv6 unique-local
	// (fc00::/7) but not the IPv4 CGNAT shared range 100.64.0.0/10, which
	// is flagged explicitly below. The 169.254.0.0/16 check repeats
	// IsLinkLocalUnicast as an extra guard for the metadata-service address.
	if ip4 := ip.To4(); ip4 != nil {
		if ip4[0] == 169 && ip4[1] == 254 {
			return true // link-local, also covers 169.254.169.254
		}
		if ip4[0] == 100 && ip4[1]&0xc0 == 64 {
			return true // CGNAT shared address space 100.64.0.0/10
		}
	}
	return false
}

// isReservedHostname reports whether hostname (already lowercased) is a
// known local alias rather than a literal IP.
func isReservedHostname(hostname string) bool {
	if hostname == "localhost" {
		return true
	}
	if strings.HasSuffix(hostname, ".local") || strings.HasSuffix(hostname, ".internal") {
		return true
	}
	return false
}

// isBlockedHost reports whether hostname must be blocked under the SSRF
// rules of spec §4.5 step 2: literal private/reserved/loopback IPs, or the
// localhost/.local/.internal aliases.
func isBlockedHost(hostname string) bool {
	hostname = strings.ToLower(hostname)
	if ip := net.ParseIP(hostname); ip != nil {
		return isPrivateIP(ip)
	}
	return isReservedHostname(hostname)
}

// parseDomainAllowlist parses a comma-separated allowlist string into a
// lowercased set, matching
// original_source/.../network_utils.py:parse_domain_allowlist.
func parseDomainAllowlist(csv string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, d := range strings.Split(csv, ",") {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			out[d] = struct{}{}
		}
	}
	return out
}
