package netutil

// ShouldRetry reports whether a network error is worth retrying: timeouts,
// failed dials and dropped connections. Proxy and TLS failures are final.
func ShouldRetry(err error) bool {
	switch Classify(err) {
	case KindTimeout, KindDial, KindDisconnected:
		return true
	}
	return false
}
