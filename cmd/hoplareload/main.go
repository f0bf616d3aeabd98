// hoplareload runs the LiveReload and template compilation tasks for Hopla.
package main

import (
	"os"

	"github.com/hupe1980/hoplareload/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
