package main

import (
	"os"

	"eventflood/cmd/eventflood/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
