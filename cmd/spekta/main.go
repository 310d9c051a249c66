package main

import "github.com/spektasoft/spekta-cli/cli"

func main() {
	cli.Execute()
}
