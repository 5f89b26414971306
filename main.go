package main

import "github.com/khanhnv2901/gatespy/cmd"

var execCmd = cmd.Execute

func main() {
	execCmd()
}
