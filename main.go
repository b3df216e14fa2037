package main

import (
	"github.com/wedeploy/zklocks/cmd"
)

func main() {
	cmd.Execute()
}
