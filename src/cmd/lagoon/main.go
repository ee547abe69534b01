package main

import (
	"github.com/lagoon-network/lagoon/src/cmd/lagoon/command"
)

func main() {
	command.Execute()
}
