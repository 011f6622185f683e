// Command sessiongate runs the MCP session gateway for Browserbase.
package main

import "github.com/Sentinel-Gate/sessiongate/cmd/sessiongate/cmd"

func main() {
	cmd.Execute()
}
