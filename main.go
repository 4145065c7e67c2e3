package main

import "github.com/jsphweid/pianoscribe/cmd"

func main() {
	cmd.Execute()
}
