package main

import "order-engine/internal/cmd"

func main() {
	cmd.Execute()
}
