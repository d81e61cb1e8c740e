// Command vetrag answers veterinary questions from a pre-built FAISS or
// Qdrant index over a Persian document corpus. It provides a CLI (via Cobra),
// an HTTP/SSE server, and an MCP stdio server over the same retrieval core.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/vetrag-go/cmd/vetrag/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
