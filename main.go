package main

import (
	"github.com/baaaht/mqueue/cmd"
)

func main() {
	cmd.Execute()
}
