package main

import "github.com/justmedia/kodisync/cmd"

var execute = cmd.Execute

func main() {
	execute()
}
