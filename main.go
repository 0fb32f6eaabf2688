package main

import "github.com/josephlewis42/libterm/cmd"

func main() {
	cmd.Execute()
}
