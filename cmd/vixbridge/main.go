// Command vixbridge runs one virtual index search: it reads the request from
// stdin and writes the chunked result stream to stdout. Diagnostics go to stderr.
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Run failures are already logged with their context.
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
