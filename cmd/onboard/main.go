package main

import "github.com/gartstein/onboard/internal/cmd"

func main() {
	cmd.Execute()
}
