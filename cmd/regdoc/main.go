// Command regdoc prints the Modbus register map for SCADA engineers
// commissioning the bridge.
package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/trafficgrid/sumo-modbus-bridge/internal/catalog"
)

func main() {
	verbose := flag.Bool("v", false, "include descriptions and value ranges")
	flag.Parse()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "INPUT REGISTERS (function 04, read-only)")
	printEntries(w, catalog.InputEntries(), *verbose)

	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "HOLDING REGISTERS (functions 03/06/16, read-write)")
	printEntries(w, catalog.HoldingEntries(), *verbose)

	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "CONNECTION")
	fmt.Fprintln(w, "  protocol\tModbus TCP")
	fmt.Fprintln(w, "  default port\t5020")
	fmt.Fprintln(w, "  unit id\t1")
	fmt.Fprintln(w, "  suggested polling rate\t1000 ms")

	if err := w.Flush(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printEntries(w *tabwriter.Writer, entries []catalog.Entry, verbose bool) {
	if verbose {
		fmt.Fprintln(w, "ADDR\tNAME\tUNIT\tRANGE\tDESCRIPTION")
		for _, entry := range entries {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
				entry.Address, entry.Name, entry.Unit, entry.Range, entry.Description)
		}
		return
	}

	fmt.Fprintln(w, "ADDR\tNAME\tUNIT")
	for _, entry := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\n", entry.Address, entry.Name, entry.Unit)
	}
}
