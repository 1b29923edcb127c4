// Command ragindex runs the local hybrid retrieval engine from the
// command line: one-shot indexing, index-and-watch, single queries, and
// progress inspection.
package main

import (
	"fmt"
	"os"

	"github.com/aman-cerp/ragindex/cmd/ragindex/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
