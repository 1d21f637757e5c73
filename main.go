// The main package for the rift-harvester executable.
package main

import "github.com/riftwatch/rift-harvester/cmd"

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
