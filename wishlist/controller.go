package wishlist

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// Gateway is the HTTP side of the add-game dialog
//
//go:generate mockgen -source=controller.go -destination=mock_gateway_test.go -package=wishlist
type Gateway interface {
	Search(ctx context.Context, keyword string) ([]Game, error)
	AddToWishlist(ctx context.Context, games []Game) error
}

// State is a snapshot of everything the add-game dialog shows
type State struct {
	Open        bool
	Keyword     string
	Results     []Game
	Selected    []Game
	IsSearching bool
	IsSaving    bool
	Err         error // last failed request, cleared when the next request starts
}

// Controller holds the search keyword, the result list and the selection for one dialog
// session. All mutations go through its methods. The lock is never held across a request.
type Controller struct {
	gateway Gateway

	mu       sync.Mutex
	state    State
	seq      uint64 // latest search issued
	session  uint64 // bumped whenever the dialog is reset
	onChange func()
}

// NewController returns a closed dialog backed by gateway
func NewController(gateway Gateway) *Controller {
	return &Controller{gateway: gateway}
}

// SetOnChange registers fn to be called after every state change. Presenters use it to
// schedule a re-render.
func (c *Controller) SetOnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// State returns a copy of the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Results = slices.Clone(c.state.Results)
	s.Selected = slices.Clone(c.state.Selected)
	return s
}

// Open shows the dialog with an empty session
func (c *Controller) Open() {
	c.mu.Lock()
	c.resetLocked()
	c.state.Open = true
	c.mu.Unlock()
	c.notify()
}

// SetKeyword stores the search text without searching
func (c *Controller) SetKeyword(text string) {
	c.mu.Lock()
	c.state.Keyword = text
	c.mu.Unlock()
	c.notify()
}

// Search looks up the current keyword. A blank keyword is a no-op. Only the most recently
// issued search may update the results; responses to older searches are dropped.
func (c *Controller) Search(ctx context.Context) error {
	c.mu.Lock()
	keyword := c.state.Keyword
	if strings.TrimSpace(keyword) == "" {
		c.mu.Unlock()
		return nil
	}
	c.seq++
	seq, session := c.seq, c.session
	c.state.IsSearching = true
	c.state.Err = nil
	c.mu.Unlock()
	c.notify()

	results, err := c.gateway.Search(ctx, keyword)

	c.mu.Lock()
	if seq != c.seq || session != c.session {
		c.mu.Unlock()
		return nil
	}
	c.state.IsSearching = false
	if err != nil {
		c.state.Err = err
	} else {
		c.state.Results = results
	}
	c.mu.Unlock()
	c.notify()
	return err
}

// IsSelected reports whether a game with the id is selected
func (c *Controller) IsSelected(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isSelectedLocked(id)
}

func (c *Controller) isSelectedLocked(id int64) bool {
	return slices.ContainsFunc(c.state.Selected, func(g Game) bool { return g.ID == id })
}

// Select adds game unless a game with the same id is already selected
func (c *Controller) Select(game Game) {
	c.mu.Lock()
	if c.isSelectedLocked(game.ID) {
		c.mu.Unlock()
		return
	}
	c.state.Selected = append(c.state.Selected, game)
	c.mu.Unlock()
	c.notify()
}

// Deselect removes every selected game with the given id
func (c *Controller) Deselect(id int64) {
	c.mu.Lock()
	c.state.Selected = slices.DeleteFunc(c.state.Selected, func(g Game) bool { return g.ID == id })
	c.mu.Unlock()
	c.notify()
}

// Toggle selects game if it is not selected and deselects it otherwise
func (c *Controller) Toggle(game Game) {
	if c.IsSelected(game.ID) {
		c.Deselect(game.ID)
		return
	}
	c.Select(game)
}

// AddToWishlist submits the selection. Nothing happens while a save is running or when the
// selection is empty. A failed save keeps the dialog as it is so the user can retry; a
// successful one resets and closes it.
func (c *Controller) AddToWishlist(ctx context.Context) error {
	c.mu.Lock()
	if c.state.IsSaving || len(c.state.Selected) == 0 {
		c.mu.Unlock()
		return nil
	}
	games := slices.Clone(c.state.Selected)
	session := c.session
	c.state.IsSaving = true
	c.state.Err = nil
	c.mu.Unlock()
	c.notify()

	err := c.gateway.AddToWishlist(ctx, games)

	c.mu.Lock()
	if session != c.session {
		// closed while saving
		c.mu.Unlock()
		return err
	}
	c.state.IsSaving = false
	if err != nil {
		c.state.Err = err
	} else {
		c.resetLocked()
	}
	c.mu.Unlock()
	c.notify()
	return err
}

// CloseModal hides the dialog and forgets the session, including requests still in flight
func (c *Controller) CloseModal() {
	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()
	c.notify()
}

// DismissError clears the error banner
func (c *Controller) DismissError() {
	c.mu.Lock()
	c.state.Err = nil
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) resetLocked() {
	c.session++
	c.state = State{}
}
