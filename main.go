package main

import "github.com/papapumpkin/ccgtools/cmd"

func main() {
	cmd.Execute()
}
