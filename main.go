package main

import "retailworks/cmd"

func main() {
	cmd.Execute()
}
