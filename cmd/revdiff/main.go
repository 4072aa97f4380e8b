// Package main is the entry point for the revdiff comparison service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	diff "github.com/kart-io/revdiff/internal/diff"
)

func main() {
	diff.NewApp().Run()
}
