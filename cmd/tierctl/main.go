// Command tierctl inspects and maintains a tiercache persistent tier:
// preload JSON-lines files, read or invalidate entries, sweep expired ones.
package main

import (
	"os"
)

func main() {
	if err := newApp(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
