package p2p

import "net"

// IsLocalAddress reports whether addr belongs to a loopback, private, or
// link-local range (spec §4.7 "local addresses are never sent to
// non-local peers and vice versa"). Grounded on
// _examples/original_source/daemon/src/p2p/mod.rs's is_local_address.
func IsLocalAddress(addr *net.TCPAddr) bool {
	ip := addr.IP
	if ip4 := ip.To4(); ip4 != nil {
		return ip4.IsLoopback() || ip4.IsPrivate() || ip4.IsLinkLocalUnicast()
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}

// IsValidAddress reports whether addr is usable as a peer address to
// dial or advertise: not unspecified, loopback, multicast, or
// link-local. Grounded on
// _examples/original_source/daemon/src/p2p/mod.rs's is_valid_address,
// used there to filter which addresses are worth gossiping in a Ping's
// peer list.
func IsValidAddress(addr *net.TCPAddr) bool {
	ip := addr.IP
	if ip4 := ip.To4(); ip4 != nil {
		return !ip4.IsUnspecified() && !ip4.IsLoopback() && !ip4.IsMulticast() && !ip4.IsLinkLocalUnicast()
	}
	return !ip.IsUnspecified() && !ip.IsLoopback() && !ip.IsMulticast()
}
