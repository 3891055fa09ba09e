package main

import (
	"log"

	"github.com/gitgraph-dev/gitgraph/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		log.Fatalf("gitgraph: %v", err)
	}
}
