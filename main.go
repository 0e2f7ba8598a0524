package main

import (
	"fmt"
	"os"

	"haz.cat/sshovel/cmd"
)

func main() {
	if err := cmd.RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "sshovel: %v\n", err)
		os.Exit(1)
	}
}
