package main

import (
	"os"

	"github.com/bnema/dbsnap/cmd"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(cmd.ExecuteCLI(version, commit, date))
}
