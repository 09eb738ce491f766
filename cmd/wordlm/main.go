package main

import (
	"fmt"
	"os"

	"wordlm"
)

func main() {
	if err := wordlm.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
