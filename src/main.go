package main

import (
	"os"

	"BandAnalyzer/src/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
