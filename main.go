package main

import "github.com/kamal-hamza/autostart/cmd"

func main() {
	cmd.Execute()
}
