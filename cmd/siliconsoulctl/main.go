// siliconsoulctl evolves plastic-neuron genomes and inspects the results.
//
// Usage:
//
//	siliconsoulctl run --base plastic_neuron.v [--policy target-seeking] [--config run.yaml]
//	siliconsoulctl mutate --in plastic_neuron.v [--out plastic_neuron_gen1.v] [--rate 0.1]
//	siliconsoulctl inspect --in plastic_neuron.v [--input 10 --feedback 1 --cycles 10]
//	siliconsoulctl runs | fitness | lineage | diagnostics | snapshots | export | policies
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
