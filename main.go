package main

import "github.com/guimove/ricover/cmd"

func main() {
	cmd.Execute()
}
