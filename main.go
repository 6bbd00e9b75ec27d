package main

import "github.com/kozaktomas/cashier/cmd"

func main() {
	cmd.Execute()
}
