package main

import "github.com/nraw/gamescanner/cmd"

func main() {
	cmd.Execute()
}
