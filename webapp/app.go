package webapp

import (
	"github.com/maxence-charriere/go-app/v10/pkg/app"

	"github.com/drummonds/playday/wishlist"
)

const (
	pageWishlist = "wishlist"
	pageReleases = "releases"
)

// App is the root component of the application
type App struct {
	app.Compo
	Page string
}

// Render renders the app
func (a *App) Render() app.UI {
	return app.Div().
		Class("app-container").
		Body(
			app.Header().Body(
				&NavBar{},
			),
			app.Main().Body(
				app.Div().Class("content").Body(
					a.renderPage(),
				),
			),
		)
}

// renderPage renders the page chosen by the route
func (a *App) renderPage() app.UI {
	switch a.Page {
	case pageReleases:
		return &ReleasesPage{}
	default:
		return &HomePage{}
	}
}

// newAPIClient points a wishlist client at the server that served the page
func newAPIClient() *wishlist.Client {
	u := app.Window().URL()
	return wishlist.NewClient(u.Scheme + "://" + u.Host)
}
