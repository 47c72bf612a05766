// Package main is the entry point for the concierge terminal client.
package main

import "github.com/capitalize-ai/travel-concierge/internal/cli"

func main() {
	cli.Execute()
}
