// Command inkwell-seed fills a store with the default prompts and a demo
// novel.
package main

import (
	"fmt"
	"os"

	"github.com/sakif/inkwell/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
