// Command kuberosd is the kuberos control plane: serve runs the HTTP API (optionally
// embedding the worker pool), worker drains the task queue standalone, migrate applies
// schema migrations. A single binary with three sub-commands, since kuberos is one service
// rather than several independently-deployed ones.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
