package main

import "github.com/ngxtan/rollcall/cmd"

func main() {
	cmd.Execute()
}
