package main

import (
	"github.com/stephnangue/idstore/cmd"
)

func main() {
	cmd.Execute()
}
