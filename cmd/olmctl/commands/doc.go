// Package commands implements the olmctl command tree.
//
// Accounts and sessions are pickled under the --key pickle key and kept in
// the configured store by name. Message and plaintext arguments are file
// paths where "-" means stdin or stdout. Pairwise message files carry an
// eight byte "PRE_KEY " or "MESSAGE " prefix ahead of the base64 body.
package commands
