// Package privacy reduces personal data before it reaches logs.
package privacy

import (
	"github.com/seancfoley/ipaddress-go/ipaddr"
)

const (
	ipv4PrefixLen = 24
	ipv6PrefixLen = 48
)

// AnonymizeIP returns the network prefix of ip (/24 for IPv4, /48 for IPv6).
// Unparseable input yields "invalid" so raw values never leak into logs.
func AnonymizeIP(ip string) string {
	if ip == "" {
		return ""
	}
	addr, err := ipaddr.NewIPAddressString(ip).ToAddress()
	if err != nil || addr == nil {
		return "invalid"
	}
	if addr.IsIPv4() {
		return addr.ToPrefixBlockLen(ipv4PrefixLen).String()
	}
	return addr.ToPrefixBlockLen(ipv6PrefixLen).String()
}
