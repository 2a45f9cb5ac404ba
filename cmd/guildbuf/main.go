// Command guildbuf renders a cached guild/channel graph as host buffers in
// a terminal viewer.
package main

import (
	"fmt"
	"os"
)

// Version information (set by goreleaser)
var version = "dev"

func main() {
	if err := newRootCmd(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
