//go:build !linux

package ipc

import "net"

// peerUID reports no credentials; the socket's 0600 mode restricts access.
func peerUID(conn net.Conn) (int, bool, error) {
	return 0, false, nil
}
