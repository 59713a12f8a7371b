package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Getenv).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "segctl:", err)
		os.Exit(1)
	}
}
