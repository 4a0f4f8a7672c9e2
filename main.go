package main

import "table-call/cmd"

func main() {
	cmd.Execute()
}
