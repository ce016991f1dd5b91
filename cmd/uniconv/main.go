package main

import (
	"os"

	"github.com/uniconv/uniconv/internal/command"
)

func main() {
	if err := command.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
