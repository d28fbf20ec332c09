// The waterloop command derives the PLC inventory of a water network and
// runs the closed-loop co-simulation over it.
package main

func main() {
	Execute()
}
