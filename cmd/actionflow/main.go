package main

import "github.com/the-dev-tools/dev-tools/packages/actionflow/cmd/actionflow/cmd"

func main() {
	cmd.Execute()
}
