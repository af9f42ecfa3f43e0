package memzero

import "runtime"

// Zero overwrites b with zeros. This is best-effort and aims to reduce
// the chance of the compiler eliding the write.
//
//go:noinline
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(&b)
}
