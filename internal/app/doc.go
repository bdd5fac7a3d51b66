// Package app wires olmctl's dependencies.
//
// It reads Config from the environment, builds the logger and opens the
// configured pickle store, exposing them via the Wire struct for commands
// to use.
package app
