package main

import "github.com/mmonsif/aeroconnect/cmd"

func main() {
	cmd.Execute()
}
