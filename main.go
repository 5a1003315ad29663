package main

import (
	"os"

	"github.com/jwhalen/jobwatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
