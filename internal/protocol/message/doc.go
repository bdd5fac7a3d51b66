// Package message encodes and decodes the three binary message layouts that
// cross the wire: the pairwise ratchet message, the pre-key message that
// wraps the first ratchet message of a session, and the group message.
//
// Every layout starts with a single version byte followed by protobuf style
// tagged fields. Unknown fields are skipped so newer senders stay readable.
// Group messages carry a trailing Ed25519 signature outside the tagged area.
package message
