// artifactwatch keeps a live view of a contract project's compiled build
// artifacts.
package main

import (
	"os"

	"github.com/hupe1980/artifactwatch/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
