// Package socket implements driven.SocketTransport over a websocket
// connection to the game server.
//
// Every outbound request carries a correlation id; the read loop routes the
// matching reply back to the waiting caller and hands everything else to the
// registered inbound handlers. Outbound traffic is rate limited so a
// misbehaving batch cannot flood the server.
package socket
