// The main package for the etd-crawler executable.
package main

import "github.com/JakeFAU/etd-crawler/cmd"

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
