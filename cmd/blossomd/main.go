package main

import "github.com/petalworks/blossom/internal/cli"

func main() {
	cli.Execute()
}
