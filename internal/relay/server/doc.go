// Package server is the reference relay: an untrusted broadcaster that
// creates rooms, assigns participant identifiers, replays key
// announcements to joiners, fans frames out, and enforces room size and
// expiry. It never inspects payloads beyond the type discriminator and
// routing fields.
package server
