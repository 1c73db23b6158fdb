package main

import "github.com/krockxz/mailflow-relay/cmd"

func main() {
	cmd.Execute()
}
