package main

import "github.com/fulmenhq/mcpenv/cmd"

func main() {
	cmd.Execute()
}
