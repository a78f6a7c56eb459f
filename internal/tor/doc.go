// Package tor routes archive fetches through a SOCKS5 proxy.
//
// A Client wraps a SOCKS5 dialer for any proxy given with --proxy, usually a
// local Tor daemon. Embedded starts a private Tor daemon through tornago for
// --tor, so onion services can be archived without a system Tor install.
//
// The package also validates onion host names. Fetching an onion service
// without a proxy would leak the lookup to the system resolver, so the
// fetcher refuses to.
package tor
