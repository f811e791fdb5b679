package main

import (
	"os"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
