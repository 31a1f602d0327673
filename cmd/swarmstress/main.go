package main

import "swarmstress/cmd"

func main() {
	cmd.Execute()
}
