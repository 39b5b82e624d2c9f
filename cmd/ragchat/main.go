// Command ragchat is a retrieval-augmented chat CLI: it ingests local
// documents into a searchable corpus and answers questions about them
// with a language model, citing the passages it used.
package main

import (
	"fmt"
	"os"

	"github.com/custodia-labs/ragchat-cli/internal/adapters/driving/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
