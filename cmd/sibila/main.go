// Command sibila ingests legal documents into a vector index and serves
// filtered semantic retrieval over HTTP.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
