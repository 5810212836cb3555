package main

import "smart-stay/cmd"

func main() {
	cmd.Execute()
}
