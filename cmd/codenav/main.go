package main

import (
	"os"

	"codenav/internal/navcli"
)

func main() {
	if err := navcli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
