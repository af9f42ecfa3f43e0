// Package session drives a room connection as a single-threaded
// cooperative dispatcher.
//
// One goroutine pumps frames off the transport; the dispatcher loop
// handles one event at a time — server control frames, peer key
// announcements, tree commits and welcomes, data messages, and locally
// queued outbound plaintext — calling into the group key manager and
// synchronously sending every resulting outbound frame before returning
// to the loop. Rekeys fire on membership change and every 50 sent
// messages, gated by the deterministic initiator election.
package session
