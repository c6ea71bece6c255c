package main

import "github.com/frahmantamala/identity-access/cmd"

func main() {
	cmd.Execute()
}
