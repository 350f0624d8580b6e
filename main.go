package main

import (
	"os"

	"github.com/qstep/qstep/cmd/qstep/cmds"
)

func main() {
	if err := cmds.New().Execute(); err != nil {
		os.Exit(1)
	}
}
