package main

import (
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/cli"
)

func main() {
	cli.Execute()
}
