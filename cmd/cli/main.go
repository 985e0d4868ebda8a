// pgcrunch - PostgreSQL statement duration extractor
//
// pgcrunch reads PostgreSQL server logs and writes one CSV row for every
// statement whose duration the server reported.
package main

import (
	"os"

	"github.com/ccollicutt/pgcrunch/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
