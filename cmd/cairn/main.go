package main

import (
	"os"

	"github.com/cairnlabs/cairn/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
