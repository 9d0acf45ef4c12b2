// Command xaddonmgr manages a flight simulator's add-on library: it
// discovers scenery packs, classifies and scores them, produces a layered
// load order, validates it, and writes the simulator's manifest.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
