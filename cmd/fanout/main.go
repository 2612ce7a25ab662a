package main

import (
	"os"

	"fanout/internal/cli"
)

func main() {
	os.Exit(cli.Main(os.Args[1:]))
}
