// Package main is the entry point for the discovery search service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/discovery-search/cmd/discovery-search/app"
)

func main() {
	app.NewApp().Run()
}
