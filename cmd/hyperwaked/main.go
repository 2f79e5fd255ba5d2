package main

import (
	"os"

	"github.com/hyperwake/hyperwake/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
