// Command mcp-server runs the panelcast MCP tools over stdio. It is the
// same as "panelcast mcp", packaged for clients that expect a dedicated
// binary.
package main

import (
	"os"

	"github.com/apresai/panelcast/internal/cli"
)

func main() {
	if err := cli.ExecuteMCP(); err != nil {
		os.Exit(1)
	}
}
