// Command cronrun runs one batch of service calls per invocation.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/cronrun/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
