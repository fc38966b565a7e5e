package main

import (
	"hoerbox/cmd"
)

func main() {
	cmd.Execute()
}
