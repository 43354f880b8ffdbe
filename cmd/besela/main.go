package main

import cmd "github.com/fri-wier/besela/internal/cli"

func main() {
	cmd.Execute()
}
