package webapp

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/maxence-charriere/go-app/v10/pkg/app"

	"github.com/drummonds/playday/format"
	"github.com/drummonds/playday/igdb"
	"github.com/drummonds/playday/wishlist"
)

// AddGameModal searches the catalog and saves the picked games to the wishlist. All of its
// state lives in the Controller; the component only renders it.
type AddGameModal struct {
	app.Compo
	Controller *wishlist.Controller
	OnSaved    func(ctx app.Context)
}

// OnMount re-renders whenever the controller state changes, including from async work
func (m *AddGameModal) OnMount(ctx app.Context) {
	m.Controller.SetOnChange(func() {
		ctx.Dispatch(func(ctx app.Context) {})
	})
}

// OnDismount stops updates to a component that is gone
func (m *AddGameModal) OnDismount() {
	m.Controller.SetOnChange(nil)
}

func (m *AddGameModal) onKeyword(ctx app.Context, e app.Event) {
	m.Controller.SetKeyword(ctx.JSSrc().Get("value").String())
}

func (m *AddGameModal) onSearch(ctx app.Context, e app.Event) {
	e.PreventDefault()
	ctx.Async(func() {
		// failures are recorded in the controller state
		m.Controller.Search(ctx)
	})
}

func (m *AddGameModal) onSave(ctx app.Context, e app.Event) {
	ctx.Async(func() {
		if err := m.Controller.AddToWishlist(ctx); err != nil {
			return
		}
		if !m.Controller.State().Open && m.OnSaved != nil {
			ctx.Dispatch(func(ctx app.Context) {
				m.OnSaved(ctx)
			})
		}
	})
}

func (m *AddGameModal) onClose(ctx app.Context, e app.Event) {
	m.Controller.CloseModal()
}

func (m *AddGameModal) onDismissError(ctx app.Context, e app.Event) {
	m.Controller.DismissError()
}

func (m *AddGameModal) onToggle(game wishlist.Game) app.EventHandler {
	return func(ctx app.Context, e app.Event) {
		m.Controller.Toggle(game)
	}
}

func (m *AddGameModal) onDeselect(id int64) app.EventHandler {
	return func(ctx app.Context, e app.Event) {
		m.Controller.Deselect(id)
	}
}

// Render renders the modal, or nothing while it is closed
func (m *AddGameModal) Render() app.UI {
	state := m.Controller.State()
	if !state.Open {
		return app.Div().Class("modal-closed")
	}

	searchText := "Search"
	if state.IsSearching {
		searchText = "Searching..."
	}
	saveText := "Add to wishlist"
	if state.IsSaving {
		saveText = "Saving..."
	}

	return app.Div().
		Class("modal-backdrop").
		Body(
			app.Div().Class("modal").Body(
				app.Div().Class("modal-header").Body(
					app.H2().Text("Add games"),
					app.Button().Class("btn-close").OnClick(m.onClose).Text("×"),
				),
				app.If(state.Err != nil, func() app.UI {
					return app.Div().Class("error").Body(
						app.Text(state.Err.Error()),
						app.Button().Class("btn-link").OnClick(m.onDismissError).Text("Dismiss"),
					)
				}),
				app.Form().Class("search-form").OnSubmit(m.onSearch).Body(
					app.Input().
						Type("search").
						Placeholder("Search for a game").
						AutoFocus(true).
						Value(state.Keyword).
						OnInput(m.onKeyword),
					app.Button().
						Type("submit").
						Disabled(state.IsSearching).
						Text(searchText),
				),
				app.Ul().Class("search-results").Body(
					app.Range(state.Results).Slice(func(i int) app.UI {
						return m.renderResult(state.Results[i])
					}),
				),
				app.Div().Class("selected-games").Body(
					app.Range(state.Selected).Slice(func(i int) app.UI {
						game := state.Selected[i]
						return app.Span().Class("chip").Body(
							app.Text(game.Name),
							app.Button().Class("chip-remove").OnClick(m.onDeselect(game.ID)).Text("×"),
						)
					}),
				),
				app.Div().Class("modal-footer").Body(
					app.Button().
						Class("btn-primary").
						Disabled(len(state.Selected) == 0 || state.IsSaving).
						OnClick(m.onSave).
						Text(saveText),
				),
			),
		)
}

func (m *AddGameModal) renderResult(game wishlist.Game) app.UI {
	var info igdb.Game
	// without details the result still shows its name
	_ = game.Decode(&info)

	class := "search-result"
	if m.Controller.IsSelected(game.ID) {
		class += " selected"
	}
	var released string
	if info.FirstReleaseDate != nil {
		released = format.EpochToHuman(*info.FirstReleaseDate)
	}
	return app.Li().
		Class(class).
		ID("game-"+strconv.FormatInt(game.ID, 10)).
		OnClick(m.onToggle(game)).
		Body(
			coverImage(info.CoverImageID(), game.Name),
			app.Span().Class("result-name").Text(game.Name),
			app.If(released != "", func() app.UI {
				return app.Span().Class("result-date").Text(released)
			}),
		)
}

func coverImage(imageID, alt string) app.UI {
	if imageID == "" {
		return app.Div().Class("cover cover-missing")
	}
	return app.Img().Class("cover").Src("/api/cover/" + imageID).Alt(alt)
}

func decodeInfo(entry wishlist.Entry, v *igdb.Game) error {
	if len(entry.IGDBInfo) == 0 {
		return nil
	}
	return json.Unmarshal(entry.IGDBInfo, v)
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
