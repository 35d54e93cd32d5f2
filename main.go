package main

import "github.com/tkamdem/livrazone/cmd"

func main() {
	cmd.Execute()
}
