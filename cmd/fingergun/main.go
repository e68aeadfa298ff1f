package main

import "github.com/ayusman/fingergun/cmd/fingergun/cmd"

func main() {
	cmd.Execute()
}
