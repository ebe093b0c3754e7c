package main

import (
	"os"

	"github.com/rpggio/accord/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
