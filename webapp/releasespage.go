package webapp

import (
	"fmt"
	"time"

	"github.com/maxence-charriere/go-app/v10/pkg/app"

	"github.com/drummonds/playday/format"
	"github.com/drummonds/playday/wishlist"
)

// ReleasesPage shows the wished games releasing soon and lets the user re-check release dates
type ReleasesPage struct {
	app.Compo
	client   *wishlist.Client
	running  bool
	result   string
	error    string
	upcoming []wishlist.Upcoming
}

// OnMount is called when the component is mounted
func (r *ReleasesPage) OnMount(ctx app.Context) {
	r.client = newAPIClient()
	r.fetchUpcoming(ctx)
}

// Render renders the releases page
func (r *ReleasesPage) Render() app.UI {
	buttonText := "Check release dates now"
	if r.running {
		buttonText = "Checking..."
	}

	return app.Div().
		Class("releases-page").
		Body(
			app.H2().Text("Upcoming releases"),
			app.P().Text("Release dates are re-checked against the catalog on a schedule. Games releasing in the next few days are listed here."),

			app.Div().Class("refresh-controls").Body(
				app.Button().
					Class("btn-primary").
					Disabled(r.running).
					OnClick(r.onRefreshClick).
					Body(app.Text(buttonText)),
			),

			r.renderStatus(),
			r.renderUpcoming(),
		)
}

// renderStatus renders the status section
func (r *ReleasesPage) renderStatus() app.UI {
	if r.running {
		return app.Div().Class("loading").Body(
			app.Text("Asking the server to refresh release dates..."),
		)
	}
	if r.error != "" {
		return app.Div().Class("error").Body(
			app.Text("Error: " + r.error),
		)
	}
	if r.result != "" {
		return app.Div().Class("success").Body(
			app.P().Text(r.result),
		)
	}
	return app.Div()
}

func (r *ReleasesPage) renderUpcoming() app.UI {
	if len(r.upcoming) == 0 {
		return app.P().Class("empty").Text("Nothing on your wishlist releases in the next few days.")
	}
	return app.Ul().Class("upcoming-list").Body(
		app.Range(r.upcoming).Slice(func(i int) app.UI {
			game := r.upcoming[i]
			days := "tomorrow"
			if game.DaysLeft > 1 {
				days = fmt.Sprintf("in %d days", game.DaysLeft)
			}
			return app.Li().Body(
				app.Strong().Text(game.Title),
				app.Text(fmt.Sprintf(" releases %s on %s", days, format.EpochToHuman(game.PCReleaseDate))),
			)
		}),
	)
}

// onRefreshClick handles the refresh button click
func (r *ReleasesPage) onRefreshClick(ctx app.Context, e app.Event) {
	r.running = true
	r.result = ""
	r.error = ""
	r.runRefresh(ctx)
}

// runRefresh calls the API to trigger the release job, then reloads the list once it has had
// time to run
func (r *ReleasesPage) runRefresh(ctx app.Context) {
	ctx.Async(func() {
		err := r.client.RefreshReleases(ctx)
		ctx.Dispatch(func(ctx app.Context) {
			r.running = false
			if err != nil {
				r.error = err.Error()
				return
			}
			r.result = "Release refresh started."
		})
		if err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(3 * time.Second):
		}
		r.fetchUpcoming(ctx)
	})
}

func (r *ReleasesPage) fetchUpcoming(ctx app.Context) {
	ctx.Async(func() {
		upcoming, err := r.client.Upcoming(ctx)
		ctx.Dispatch(func(ctx app.Context) {
			if err != nil {
				r.error = err.Error()
				return
			}
			r.upcoming = upcoming
		})
	})
}
