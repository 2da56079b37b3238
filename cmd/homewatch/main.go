package main

import "github.com/homewatch-io/homewatch/internal/cli"

func main() {
	cli.Execute()
}
