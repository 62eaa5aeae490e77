// Package main is the entry point for the wiretap capture summarizer.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/wiretap/cmd"

	// Live capture engines register themselves with the source package.
	_ "firestige.xyz/wiretap/internal/source/afpacket"
	_ "firestige.xyz/wiretap/internal/source/pcap"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cmd.ExitCode(err))
	}
}
