// The main package for the rss-pipeline executable.
package main

import (
	"github.com/tndd/datadoggo-v3-rss/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
