package main

import "github.com/trisolve/trisolve/internal/cli"

func main() {
	cli.Execute()
}
