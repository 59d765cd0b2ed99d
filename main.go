package main

import (
	"os"

	"github.com/hanseplat/userhub/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
