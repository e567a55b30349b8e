package main

import "github.com/sanisideup/fxrates/cmd"

func main() {
	cmd.Execute()
}
