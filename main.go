package main

import "wb-drill/cmd"

func main() {
	cmd.Execute()
}
