package main

import (
	"os"

	"github.com/harun/xlsession/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
