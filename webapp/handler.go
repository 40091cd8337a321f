package webapp

import (
	"net/http"

	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

// RegisterRoutes registers the client side routes, shared by the server and the wasm build
func RegisterRoutes() {
	app.Route("/", func() app.Composer { return &App{Page: pageWishlist} })
	app.Route("/app", func() app.Composer { return &App{Page: pageWishlist} })
	app.Route("/app/", func() app.Composer { return &App{Page: pageWishlist} })
	app.Route("/app/releases", func() app.Composer { return &App{Page: pageReleases} })
}

// Handler returns an HTTP handler for the web app
func Handler() http.Handler {
	RegisterRoutes()
	app.RunWhenOnBrowser()

	// wasm_exec.js is served at /wasm_exec.js by Echo
	// app.wasm is served from /web/app.wasm by Echo
	return &app.Handler{
		Name:        "playday",
		ShortName:   "playday",
		Title:       "playday",
		Description: "Wishlist of upcoming PC games",
		Icon: app.Icon{
			Default: "/favicon.ico",
		},
		RawHeaders: []string{
			`<meta name="viewport" content="width=device-width, initial-scale=1">`,
		},
	}
}
