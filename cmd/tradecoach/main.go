package main

import (
	"os"

	"github.com/rustyeddy/tradecoach/cmd/tradecoach/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
