package main

import (
	"context"
	"os"

	"github.com/fastygo/questlog/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background()))
}
