package main

import "github.com/MeKo-Tech/gridsplit/cmd/gridsplit/cmd"

func main() {
	cmd.Execute()
}
