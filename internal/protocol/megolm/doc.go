// Package megolm implements the group broadcast ratchet.
//
// The ratchet state is four 32-byte parts R0..R3 and a 32-bit counter. Part
// R(i) is rehashed every 2^(8*(3-i)) steps, and every rehash of R(i) also
// reseeds the parts after it. A receiver holding the state at index n can
// therefore reach any later index in at most 4*255 hash operations but can
// never go back.
//
// Session keys share the ratchet state together with the sender's Ed25519
// public key. The signed form is what a sender distributes; the unsigned
// export form is what a receiver hands on.
package megolm
