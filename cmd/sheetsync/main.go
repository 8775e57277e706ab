// Command sheetsync syncs database rows into Google Sheets.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/sheetsync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
