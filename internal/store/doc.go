// Package store persists pickles.
//
// A pickle is already sealed under the caller's pickle key, so every backend
// treats it as an opaque string. Records are addressed by Kind and name.
// Three backends are provided: FileStore keeps one JSON map per kind under a
// directory, RedisStore keeps one hash per kind, PostgresStore keeps a single
// table keyed by (kind, name).
package store
