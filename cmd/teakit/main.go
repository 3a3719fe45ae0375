package main

import (
	"os"

	"github.com/teakit/teakit/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
