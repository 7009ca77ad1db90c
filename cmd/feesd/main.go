package main

import (
	"fmt"
	"os"

	"github.com/lightninglabs/autofees/feesd"
)

func main() {
	if err := feesd.Main(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "feesd: %v\n", err)
		os.Exit(1)
	}
}
