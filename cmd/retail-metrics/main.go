/*
main.go - Application entry point

PURPOSE:
  Dispatches to the cli package. All wiring (config, logging, store,
  engines, server) lives there.

EXAMPLES:
  # Seed a demo universe and compute every metric
  ./retail-metrics seed --compute --db=./data/metrics.db

  # Start the API server
  ./retail-metrics serve --addr=:8080 --db=./data/metrics.db

  # Recompute health scores for the last quarter
  ./retail-metrics compute health --from=2026-01-01 --to=2026-03-31

SEE ALSO:
  - cli/cli.go: Command definitions
*/
package main

import (
	"os"

	"github.com/shelfsight/retail-metrics/cli"
	"github.com/shelfsight/retail-metrics/logging"
)

func main() {
	if err := cli.Execute(); err != nil {
		logging.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
