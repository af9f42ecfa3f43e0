// Package relay talks to the relay server: a websocket frame stream per
// room and a small REST client for room lifecycle. The server is an
// untrusted broadcaster; everything meaningful in the frames is
// authenticated end to end by the services layer.
package relay
