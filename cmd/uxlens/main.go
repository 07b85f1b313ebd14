// Command uxlens is the entry point for the UX skills personalization backend.
// It provides a CLI (via Cobra) for serving the retrieval API, ingesting
// learning resources, and managing pre-generated improvement plans.
package main

import (
	"fmt"
	"os"

	"github.com/uxlens/uxlens-go/cmd/uxlens/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
