package main

import "payment-mcp/cmd"

func main() {
	cmd.Execute()
}
