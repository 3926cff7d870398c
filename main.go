package main

import "github.com/jcdickinson/doxnav/cmd"

func main() {
	cmd.Execute()
}
