package main

import (
	"os"

	"github.com/htwangtw/fmriprep/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
