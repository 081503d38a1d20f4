package main

import (
	"os"

	"github.com/dshills/cphelper/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
