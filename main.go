package main

import "github.com/bryan-buckman/babelfeed/cmd"

func main() {
	cmd.Execute()
}
