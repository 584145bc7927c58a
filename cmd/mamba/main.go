// Package main is the entry point for the mamba web framework server.
package main

func main() {
	Execute()
}
