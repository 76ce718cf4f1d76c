package audio

// Drain discards everything from ch until it is closed. Use it to release a
// producer whose output is no longer wanted.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
