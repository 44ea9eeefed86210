package main

import (
	"github.com/Raezil/celestial-bridge/cmd"
)

func main() {
	cmd.Execute()
}
