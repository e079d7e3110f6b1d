package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ceyewan/snowflake/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "snowflake:", err)
		os.Exit(1)
	}
}
