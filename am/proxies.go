package am

import (
	"net/netip"

	"github.com/teranos/discograph/errors"
)

// TrustedProxyPrefixes parses server.trusted_proxies. A bare address is a
// single-host prefix.
func (c ServerConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, entry := range c.TrustedProxies {
		if p, err := netip.ParsePrefix(entry); err == nil {
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, errors.WithHint(
				errors.Newf("server.trusted_proxies: %q is not an address or CIDR range", entry),
				"use entries like \"10.0.0.1\" or \"10.0.0.0/8\"")
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}
