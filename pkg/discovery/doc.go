// ABOUTME: mDNS service discovery package
// ABOUTME: Advertise and find VBAN bridges on the local network
// Package discovery advertises VBAN bridges over mDNS and finds peers.
//
// VBAN itself has no discovery; bridges that opt in publish a _vban._udp
// service whose TXT record carries the stream name, sample rate, channel
// count and session id. A bridge configured with remote_ip = auto browses
// for a peer publishing the same stream name.
//
// Example:
//
//	peers, err := discovery.Browse(ctx, 3*time.Second)
//	for _, p := range peers {
//	    fmt.Printf("Found: %s at %s:%d\n", p.Stream, p.Host, p.Port)
//	}
package discovery
