// Command ragengine indexes a folder of documents and answers questions
// about them.
package main

import (
	"os"

	"github.com/Qingzhee/rag-engine/internal/adapters/driving/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
