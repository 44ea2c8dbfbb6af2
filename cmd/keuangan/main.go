package main

import (
	"context"
	"os"

	"keuangan/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), cli.NewRootCommand()))
}
