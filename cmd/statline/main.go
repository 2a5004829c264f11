package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}
