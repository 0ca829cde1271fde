package main

import (
	"os"

	"github.com/apiforge-io/apiforge/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
