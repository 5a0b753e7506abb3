// msAnalyzer - isotope correction and quantification of MS experiments
package main

import (
	"fmt"
	"os"

	"github.com/ChrisMcGann/msanalyzer/cmd/msanalyzer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
