package webapp

import (
	"fmt"

	"github.com/maxence-charriere/go-app/v10/pkg/app"

	"github.com/drummonds/playday/format"
	"github.com/drummonds/playday/igdb"
	"github.com/drummonds/playday/wishlist"
)

// HomePage lists the wishlist and hosts the add game modal
type HomePage struct {
	app.Compo
	client  *wishlist.Client
	modal   *wishlist.Controller
	entries []wishlist.Entry
	loading bool
	error   string
}

// OnMount is called when the component is mounted
func (h *HomePage) OnMount(ctx app.Context) {
	h.client = newAPIClient()
	h.modal = wishlist.NewController(h.client)
	h.loading = true
	h.fetchWishlist(ctx)
}

// fetchWishlist loads the wishlist from the API
func (h *HomePage) fetchWishlist(ctx app.Context) {
	ctx.Async(func() {
		entries, err := h.client.Wishlist(ctx)
		ctx.Dispatch(func(ctx app.Context) {
			h.loading = false
			if err != nil {
				h.error = err.Error()
				return
			}
			h.error = ""
			h.entries = entries
		})
	})
}

func (h *HomePage) onAddClick(ctx app.Context, e app.Event) {
	if h.modal != nil {
		h.modal.Open()
	}
}

func (h *HomePage) onRemove(id string) app.EventHandler {
	return func(ctx app.Context, e app.Event) {
		ctx.Async(func() {
			if err := h.client.Remove(ctx, id); err != nil {
				ctx.Dispatch(func(ctx app.Context) {
					h.error = err.Error()
				})
				return
			}
			h.fetchWishlist(ctx)
		})
	}
}

// Render renders the home page
func (h *HomePage) Render() app.UI {
	var content app.UI

	if h.loading {
		content = app.Div().Class("loading").Body(app.Text("Loading..."))
	} else if h.error != "" {
		content = app.Div().Class("error").Body(app.Text("Error: " + h.error))
	} else if len(h.entries) == 0 {
		content = app.P().Class("empty").Text("Nothing on your wishlist yet.")
	} else {
		content = app.Div().Class("game-grid").Body(
			app.Range(h.entries).Slice(func(i int) app.UI {
				entry := h.entries[i]
				return &GameCard{Entry: entry, OnRemove: h.onRemove(entry.ID)}
			}),
		)
	}

	var modal app.UI = app.Div()
	if h.modal != nil {
		modal = &AddGameModal{Controller: h.modal, OnSaved: h.fetchWishlist}
	}

	return app.Div().
		Class("home-page").
		Body(
			app.Div().Class("page-header").Body(
				app.H2().Text("Wishlist"),
				app.Button().
					Class("btn-primary").
					OnClick(h.onAddClick).
					Text("Add games"),
			),
			content,
			modal,
		)
}

// GameCard displays a single wished game
type GameCard struct {
	app.Compo
	Entry    wishlist.Entry
	OnRemove app.EventHandler
}

// Render renders the game card
func (g *GameCard) Render() app.UI {
	var info igdb.Game
	// a payload we cannot read still leaves the title and dates
	_ = decodeInfo(g.Entry, &info)

	release := "Release date unknown"
	if g.Entry.PCReleaseDate != 0 {
		release = fmt.Sprintf("PC release %s (%s)",
			format.EpochToHuman(g.Entry.PCReleaseDate),
			format.EpochToRelative(g.Entry.PCReleaseDate))
	}

	return app.Div().
		Class("game-card").
		Body(
			coverImage(info.CoverImageID(), g.Entry.Title),
			app.Div().Class("game-info").Body(
				app.H3().Text(g.Entry.Title),
				app.P().Class("game-release").Text(release),
				app.If(len(info.Developers()) > 0, func() app.UI {
					return app.P().Class("game-developers").Text(joinNames(info.Developers()))
				}),
				app.P().
					Class("game-added").
					Text("Added "+format.EpochToRelative(g.Entry.AddedOn)),
				app.Button().
					Class("btn-danger").
					OnClick(g.OnRemove).
					Text("Remove"),
			),
		)
}
