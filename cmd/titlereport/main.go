// Command titlereport turns a property title document into a legal title
// report. It runs once from the terminal or serves the upload page.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
