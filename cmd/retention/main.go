package main

import (
	"context"
	"fmt"
	"os"

	"github.com/berniemackie97/skillbound-sub002/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
