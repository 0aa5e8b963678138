package main

import "github.com/robotalks/instrbus/cmd/busctl/commands"

func main() {
	commands.Execute()
}
