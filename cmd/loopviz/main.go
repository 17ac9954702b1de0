package main

import "github.com/funvibe/loopviz/pkg/cli"

func main() {
	cli.Main()
}
