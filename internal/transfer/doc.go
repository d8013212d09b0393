// Package transfer implements the per-recording transfer protocol: the
// request/size-read/stream/acknowledge state machine with stall and total
// timeouts, bounded retries, and chunk reassembly.
package transfer
