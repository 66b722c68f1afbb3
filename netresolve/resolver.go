// Package netresolve resolves the public endpoints of a running deployment
// to IP addresses over DNS. It is a best-effort liveness aid for callers
// that want to confirm a freshly provisioned workload is reachable.
package netresolve

import (
	"fmt"
	"net/url"

	"github.com/miekg/dns"
)

// DefaultResolverAddr is the local stub resolver.
const DefaultResolverAddr = "127.0.0.53:53"

// Resolver resolves deployment URLs to instance IP addresses.
type Resolver struct {
	// Addr is the DNS server to query. Empty uses DefaultResolverAddr.
	Addr string
}

// ResolveURL resolves the host of a deployment URL to IP addresses via DNS
// A records.
func (r *Resolver) ResolveURL(rawURL string) ([]string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("could not parse deployment URL: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("deployment URL has no host: %s", rawURL)
	}
	return r.resolveHost(dns.Fqdn(host))
}

// ResolveURLs resolves every URL, mapping URL to resolved IPs. URLs that
// fail to resolve are skipped; an empty map is not an error.
func (r *Resolver) ResolveURLs(rawURLs []string) map[string][]string {
	resolved := make(map[string][]string)
	for _, rawURL := range rawURLs {
		ips, err := r.ResolveURL(rawURL)
		if err != nil || len(ips) == 0 {
			continue
		}
		resolved[rawURL] = ips
	}
	return resolved
}

func (r *Resolver) resolveHost(fqdn string) ([]string, error) {
	addr := r.Addr
	if addr == "" {
		addr = DefaultResolverAddr
	}

	m := new(dns.Msg)
	m.Id = dns.Id()
	m.RecursionDesired = true
	m.Question = []dns.Question{{Name: fqdn, Qtype: dns.TypeA, Qclass: dns.ClassINET}}

	c := new(dns.Client)
	in, _, err := c.Exchange(m, addr)
	if err != nil {
		return nil, fmt.Errorf("dns query for %s failed: %w", fqdn, err)
	}

	ips := make([]string, 0, len(in.Answer))
	for _, answer := range in.Answer {
		if a, ok := answer.(*dns.A); ok {
			ips = append(ips, a.A.String())
		}
	}
	return ips, nil
}
