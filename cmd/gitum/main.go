// Command gitum manages a local mirror of an upstream project with a
// private patch set layered on top.
package main

import "github.com/roasbeef/gitum/commands"

func main() {
	commands.Execute()
}
