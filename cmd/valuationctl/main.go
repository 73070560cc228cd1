// Command valuationctl runs the offline valuation pipeline stages.
package main

import (
	"os"

	"apartment-valuation-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
