package main

import (
	"os"

	"securechat/cmd/securechat/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
