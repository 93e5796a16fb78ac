package main

import "github.com/hpcq/hpcq/cmd"

func main() {
	cmd.Execute()
}
