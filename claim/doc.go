// Package claim implements cooperative row claiming over a shared tabular
// store that offers no compare-and-swap primitive.
//
// Workers race for pending rows using a claim-then-reread protocol: write
// your identity into the row, wait out the store's eventual consistency by
// rereading, and keep the row only if your identity survived. Combined with
// a random pre-claim jitter this keeps duplicate processing rare without
// requiring any coordination channel beyond the store itself.
//
// Each claim cycle also sweeps for stalled rows, ones claimed by a worker
// that died mid-task, and releases at most one of them back to the pending
// pool so the sweep cost stays bounded.
package claim
