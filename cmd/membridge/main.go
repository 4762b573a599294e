// Command membridge runs workloads against memory timing engines through the
// bridge and reports what the engines did.
package main

import (
	"github.com/tebeka/atexit"

	_ "github.com/sarchlab/membridge/mem/dram"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
