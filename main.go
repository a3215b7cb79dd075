package main

import (
	"github.com/flowrun/flowrun/cmd"
)

func main() {
	cmd.Execute()
}
