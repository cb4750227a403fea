package main

import "github.com/gatherline/server/cmd/server/cmd"

func main() {
	cmd.Execute()
}
