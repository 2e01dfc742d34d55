package main

import "github.com/bascanada/logium/cmd"

func main() {
	cmd.Execute()
}
