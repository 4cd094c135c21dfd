package main

import (
	_ "time/tzdata"

	"github.com/naka-gawa/github-traffic/cmd"
)

func main() {
	cmd.Execute()
}
