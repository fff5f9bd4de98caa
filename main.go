package main

import "github.com/agentic-research/resmerge/cmd"

func main() {
	cmd.Execute()
}
