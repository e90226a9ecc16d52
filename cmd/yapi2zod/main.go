package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/yapi2zod/internal/cli"
)

var version = "dev" // Will be set during build

func main() {
	cli.Version = version
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, cli.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
