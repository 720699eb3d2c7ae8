package main

import "github.com/jmcleod/whitetemp/cmd/whitetemp/cmd"

func main() {
	cmd.Execute()
}
