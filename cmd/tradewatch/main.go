package main

import (
	"os"

	"github.com/rustyeddy/tradewatch/cmd/tradewatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
