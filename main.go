// Package main is the entry point for basexq, a command-line front end to the
// basex-query extension function.
package main

import (
	"github.com/cmarchand/xpath-basex-ext/cmd"
)

func main() {
	cmd.Execute()
}
