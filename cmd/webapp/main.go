//go:build js && wasm
// +build js,wasm

package main

import (
	"github.com/maxence-charriere/go-app/v10/pkg/app"

	"github.com/drummonds/playday/webapp"
)

func main() {
	webapp.RegisterRoutes()

	// This main function is for the WASM build only
	// It initializes the go-app when running in the browser
	app.RunWhenOnBrowser()
}
