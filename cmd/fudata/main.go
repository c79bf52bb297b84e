package main

import (
	"os"

	"fudata/cmd/fudata/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
