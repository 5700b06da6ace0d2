package chans

// TrySend sends an object to a channel
// if the receiver or the buffer is ready.
//
// Returns false if the object was dropped.
// If channel is nil, does nothing and returns true.
func TrySend[T any](ch chan<- T, s T) bool {
	if ch == nil {
		return true
	}
	select {
	case ch <- s:
		return true
	default:
		return false
	}
}
