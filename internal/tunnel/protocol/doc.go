// Package protocol defines the wire frames exchanged between the
// tunnel agent and the relay.
//
// Framing is JSON text messages over the websocket, one frame per
// message. Request bodies ride inside the frame base64-encoded (the
// standard encoding/json treatment of []byte); responses are fully
// buffered before being sent, there is no chunked streaming.
//
// Frame types:
//
//   - request:  relay -> agent, a webhook delivery to forward
//   - response: agent -> relay, the local service's answer
//   - ping/pong: liveness, either direction, no correlation id
//   - error:    agent -> relay, when forwarding is impossible
//
// All frames except ping and pong carry a correlation id pairing a
// request with its response on the shared connection.
package protocol
