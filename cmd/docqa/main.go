// Package main is the entry point for the document QA service.
package main

import (
	"fmt"
	"os"

	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/docqa/internal/docqa"
)

func main() {
	if err := docqa.NewApp().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
