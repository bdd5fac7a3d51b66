// Package domain defines the fixed-size key types shared by the engine and
// protocol packages.
package domain
