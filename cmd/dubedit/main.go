package main

import "github.com/okoshkin/dubedit/internal/cli"

func main() {
	cli.Main()
}
