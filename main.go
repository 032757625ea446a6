// The main package for the matchwatch executable.
package main

import "github.com/JakeFAU/matchwatch/cmd"

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
