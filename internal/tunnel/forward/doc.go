// Package forward executes decoded tunnel requests against the
// developer's local HTTP service.
//
// Each call produces exactly one Result: the local response relayed
// verbatim, a synthesized 502 when the service is unreachable, or a
// synthesized 504 when the per-request deadline passes. Retrying is a
// relay concern across redeliveries; the forwarder never retries.
package forward
