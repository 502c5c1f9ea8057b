package main

import "github.com/mfbotde/tracker/internal/cli"

func main() {
	cli.Execute()
}
