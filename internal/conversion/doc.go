// Package conversion coordinates WebP conversion batches on connected sites.
//
// The connector owns the queue. The Coordinator validates and forwards
// enqueue and revert requests, reads status through on demand, and offers a
// backoff poller for callers that want to block until a batch settles.
// Status reads degrade to an empty queue on failure; mutations never do.
package conversion
