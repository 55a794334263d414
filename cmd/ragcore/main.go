package main

import "github.com/docuchat/ragcore/internal/adapters/driving/cli"

func main() {
	cli.Execute()
}
