package main

import "github.com/brensch/flatpack/cmd"

func main() {
	cmd.Execute()
}
