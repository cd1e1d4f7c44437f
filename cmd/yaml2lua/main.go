// yaml2lua converts YAML documents into Lua table constructors.
package main

import (
	"os"

	"github.com/yaml2lua/yaml2lua/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
