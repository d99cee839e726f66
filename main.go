package main

import "github.com/shopharvest/shopharvest/cmd"

func main() {
	cmd.Execute()
}
