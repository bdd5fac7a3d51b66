package main

import (
	"github.com/awnumar/memguard"

	"olmkit/cmd/olmctl/commands"
)

func main() {
	memguard.CatchInterrupt()
	defer memguard.Purge()

	if err := commands.Execute(); err != nil {
		memguard.SafeExit(1)
	}
}
