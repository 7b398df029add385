// Package main runs the quadpin server and its maintenance commands.
package main

import "os"

// main is the entrypoint for the quadpin binary.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
