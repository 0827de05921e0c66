package main

import "github.com/chkdhq/chkd/cmd"

func main() {
	cmd.Execute()
}
