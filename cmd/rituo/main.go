// Package main is the rituo entry point.
package main

import "github.com/mesh-intelligence/rituo/internal/cli"

func main() {
	cli.Execute()
}
