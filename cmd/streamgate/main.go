package main

import (
	"github.com/mediamux/streamgate/internal/adapters/cli"
)

func main() {
	cli.Execute()
}
