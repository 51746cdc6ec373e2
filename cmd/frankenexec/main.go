package main

import (
	"os"

	"github.com/yoanbernabeu/frankenexec/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
