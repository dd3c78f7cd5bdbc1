package main

import "github.com/openprep/prepflow/apps/prepflowd/cmd"

func main() {
	cmd.Execute()
}
