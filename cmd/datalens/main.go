package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-go-golems/datalens/cmd/datalens/cmds"
)

func main() {
	root := cmds.NewRootCommand()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
