package main

import "github.com/docuglot/chapter-translator/internal/cli"

func main() {
	cli.Execute()
}
