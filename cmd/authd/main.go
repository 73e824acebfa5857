package main

import "github.com/cameronmore/authd/cmd/authd/cmd"

func main() {
	cmd.Execute()
}
