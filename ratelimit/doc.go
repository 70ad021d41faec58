// Package ratelimit provides the blocking call gate that keeps workers inside
// the shared store's API quota.
//
// The gate is a token bucket of one with a minimum refill interval: every
// store call waits until at least the configured gap has passed since the
// previous call, regardless of operation type. It is a delay, not a queue:
// callers block in line on the gate's mutex and proceed one at a time.
//
// # Usage
//
//	gate := ratelimit.NewGate(3 * time.Second)
//
//	if err := gate.Wait(ctx); err != nil {
//	    return err // context canceled while waiting
//	}
//	// safe to call the store now
//
// One gate is constructed per process and shared by reference with every
// store wrapper, so multiple stores in tests cannot interfere with each
// other through ambient state.
package ratelimit
