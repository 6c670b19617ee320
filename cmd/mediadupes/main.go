package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

// errPartial marks a scan that finished but recorded entry-local failures.
var errPartial = errors.New("scan completed with notes")

func main() {
	os.Exit(run())
}

// run maps outcomes to exit codes: 0 clean, 1 duplicates found but some
// entries could not be examined, 2 fatal.
func run() int {
	root := &cobra.Command{
		Use:           "mediadupes",
		Short:         "Find duplicate media files and folders",
		Version:       version + " (" + commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newScanCmd())
	root.AddCommand(newServeCmd())

	if err := root.Execute(); err != nil {
		if errors.Is(err, errPartial) {
			return 1
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	return 0
}
