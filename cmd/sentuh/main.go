package main

import (
	"os"

	"github.com/luthfi/sentuh/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
