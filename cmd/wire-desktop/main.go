// wire-desktop is the desktop host of the Wire client: it runs the host
// bridge for the account webviews and manages accounts and backups.
package main

import (
	"os"

	"github.com/wireapp/wire-desktop/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
