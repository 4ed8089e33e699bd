package main

import "github.com/vietdv277/clusterbench/cmd"

func main() {
	cmd.Execute()
}
