package main

import (
	"os"

	"github.com/gauntlet-ci/gauntlet/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
