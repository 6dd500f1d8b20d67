package main

import "github.com/jmehdipour/pos-sync/cmd"

func main() {
	cmd.Execute()
}
