package main

import (
	"github.com/OpenTraceLab/f4demos/cmd/f4demo/cmd"
)

func main() {
	cmd.Execute()
}
