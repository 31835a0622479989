// Package buffer provides a thread-safe ring buffer for keeping a sliding
// window of the most recent elements.
//
// RingBuffer overwrites the oldest element when full and never blocks. It is
// used for the bounded event history of a console session and for the
// diagnostics lines shown by the terminal UI.
//
// Example usage:
//
//	rb := buffer.RingN[string](3)
//	for _, s := range []string{"a", "b", "c", "d"} {
//		rb.Add(s)
//	}
//	rb.Bytes()    // [b c d]
//	rb.Backward() // [d c b]
package buffer
