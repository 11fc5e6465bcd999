package main

import "github.com/mutag-calib/combine-tools/cmd"

func main() {
	cmd.Execute()
}
