package screens

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"pizzachallenge/internal/apperr"
	"pizzachallenge/internal/gateway"
	"pizzachallenge/internal/models"

	"go.uber.org/zap"
)

const (
	msgNoPlayers         = "No players yet"
	msgNoPurchases       = "No purchases yet"
	msgPlayersLoadFailed = "Failed to load players."
	msgHistoryFailed     = "Failed to load purchase history."
	msgPurchaseDone      = "Purchase completed successfully."
	msgPurchaseFailed    = "Failed to complete the purchase."
	msgNotEnoughCoins    = "Not enough coins to complete the purchase."
	msgSliceEaten        = "Pizza slice logged as eaten!"
	msgSliceFailed       = "Failed to log pizza slice."
	msgUserDeleted       = "User deleted successfully."
	msgDeleteFailed      = "Failed to delete user."

	// DefaultPollInterval is how often the player list is re-fetched besides push
	DefaultPollInterval = 5 * time.Second
)

var (
	// ErrNotMounted is returned by actions on an unmounted screen
	ErrNotMounted = errors.New("screen is not mounted")
	// ErrUnknownPlayer is returned when the user is not in the current list
	ErrUnknownPlayer = errors.New("player is not in the list")
	// ErrUnknownSlice is returned when the slice is not in the current catalog
	ErrUnknownSlice = errors.New("pizza slice is not in the catalog")
	// ErrNoModal is returned when an action needs a modal that is not open
	ErrNoModal = errors.New("no modal is open for this action")
	// ErrBusy is returned while the same action is still in flight
	ErrBusy = errors.New("a request is already in flight")
)

// PlayersOptions tunes the player management screen
type PlayersOptions struct {
	PollInterval time.Duration
	// Incremental patches the list from change rows instead of re-fetching
	Incremental bool
}

type purchaseModal struct {
	userID     uint
	cart       *Cart
	submitting bool
}

type historyModal struct {
	userID  uint
	records []models.PurchaseRecord
	marking map[uint]bool
}

// Players is the player management screen: the user list plus the purchase,
// history and delete-confirmation flows for one selected user at a time.
type Players struct {
	gateway gateway.Gateway
	opts    PlayersOptions

	mu sync.Mutex
	lifecycle
	notices

	loading bool
	loadErr string
	users   []models.User
	slices  []models.PizzaSlice

	purchase      *purchaseModal
	history       *historyModal
	confirmDelete uint

	onChange func()
}

func NewPlayers(gw gateway.Gateway, opts PlayersOptions) *Players {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Players{
		gateway: gw,
		opts:    opts,
		loading: true,
	}
}

// OnChange registers a callback run when a refresh changed the list or catalog
func (p *Players) OnChange(fn func()) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// Mount fetches users and catalog, subscribes to their changes and starts
// polling. Mounting a mounted screen is a no-op.
func (p *Players) Mount(ctx context.Context) {
	p.mu.Lock()
	gen, loopCtx, ok := p.begin()
	if !ok {
		p.mu.Unlock()
		return
	}
	p.loading = p.users == nil
	p.mu.Unlock()

	var userEvents, sliceEvents <-chan models.ChangeEvent
	if sub := p.keep(gen, subscribe(loopCtx, p.gateway, models.CollectionUsers)); sub != nil {
		userEvents = sub.Events()
	}
	if sub := p.keep(gen, subscribe(loopCtx, p.gateway, models.CollectionSlices)); sub != nil {
		sliceEvents = sub.Events()
	}

	p.refreshUsers(ctx, gen)
	p.refreshSlices(ctx, gen)

	go p.loop(loopCtx, gen, userEvents, sliceEvents)
}

// keep attaches sub to the generation, closing it if the screen went away
func (p *Players) keep(gen uint64, sub gateway.Subscription) gateway.Subscription {
	if sub == nil {
		return nil
	}
	p.mu.Lock()
	kept := p.attach(gen, sub)
	p.mu.Unlock()
	if !kept {
		closeSubscriptions([]gateway.Subscription{sub})
		return nil
	}
	return sub
}

// Unmount stops polling and closes the subscriptions exactly once. Results
// of requests still in flight are discarded.
func (p *Players) Unmount() {
	p.mu.Lock()
	subs := p.end()
	p.purchase = nil
	p.history = nil
	p.confirmDelete = 0
	p.mu.Unlock()

	closeSubscriptions(subs)
}

// Mounted reports whether the screen is mounted
func (p *Players) Mounted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mounted
}

func (p *Players) loop(ctx context.Context, gen uint64, userEvents, sliceEvents <-chan models.ChangeEvent) {
	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			p.refreshUsers(ctx, gen)

		case event, ok := <-userEvents:
			if !ok {
				userEvents = nil
				continue
			}
			if p.opts.Incremental && p.patchUser(gen, event) {
				continue
			}
			p.refreshUsers(ctx, gen)

		case _, ok := <-sliceEvents:
			if !ok {
				sliceEvents = nil
				continue
			}
			p.refreshSlices(ctx, gen)
		}
	}
}

func (p *Players) changed() {
	p.mu.Lock()
	fn := p.onChange
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// refreshUsers re-fetches the full list. On failure the screen stays on its
// last good data.
func (p *Players) refreshUsers(ctx context.Context, gen uint64) {
	reqCtx, cancel := dispatchContext(ctx)
	defer cancel()
	users, err := p.gateway.ListUsers(reqCtx)

	p.mu.Lock()
	if !p.current(gen) {
		p.mu.Unlock()
		return
	}
	p.loading = false
	if err != nil {
		zap.L().Warn("failed to fetch players", zap.Error(err))
		moved := p.users == nil && p.loadErr == ""
		if p.users == nil {
			p.loadErr = msgPlayersLoadFailed
		}
		p.mu.Unlock()
		if moved {
			p.changed()
		}
		return
	}
	moved := p.loadErr != "" || p.users == nil || !slices.Equal(p.users, users)
	p.loadErr = ""
	p.users = users
	p.syncCart()
	p.mu.Unlock()
	if moved {
		p.changed()
	}
}

func (p *Players) refreshSlices(ctx context.Context, gen uint64) {
	reqCtx, cancel := dispatchContext(ctx)
	defer cancel()
	catalog, err := p.gateway.ListSlices(reqCtx)

	p.mu.Lock()
	if !p.current(gen) {
		p.mu.Unlock()
		return
	}
	if err != nil {
		zap.L().Warn("failed to fetch pizza slices", zap.Error(err))
		p.mu.Unlock()
		return
	}
	moved := !slices.Equal(p.slices, catalog)
	p.slices = catalog
	p.mu.Unlock()
	if moved {
		p.changed()
	}
}

// patchUser applies one users change to the local list. It reports false
// when the event carries no row, so the caller falls back to a re-fetch.
func (p *Players) patchUser(gen uint64, event models.ChangeEvent) bool {
	if event.Kind == "" || len(event.Row) == 0 {
		return false
	}
	var row models.User
	if err := event.DecodeRow(&row); err != nil || row.ID == 0 {
		return false
	}

	p.mu.Lock()
	if !p.current(gen) {
		p.mu.Unlock()
		return true
	}
	switch event.Kind {
	case models.ChangeDelete:
		p.users = removeUser(p.users, row.ID)
	case models.ChangeInsert, models.ChangeUpdate:
		p.users = upsertUser(p.users, row)
	default:
		p.mu.Unlock()
		return false
	}
	p.syncCart()
	p.mu.Unlock()
	p.changed()
	return true
}

func upsertUser(users []models.User, user models.User) []models.User {
	for i := range users {
		if users[i].ID == user.ID {
			users[i] = user
			return users
		}
	}
	users = append(users, user)
	sort.SliceStable(users, func(i, j int) bool {
		if users[i].Name != users[j].Name {
			return users[i].Name < users[j].Name
		}
		return users[i].ID < users[j].ID
	})
	return users
}

func removeUser(users []models.User, id uint) []models.User {
	out := users[:0]
	for _, user := range users {
		if user.ID != id {
			out = append(out, user)
		}
	}
	return out
}

// syncCart keeps the open cart checked against the freshest balance
func (p *Players) syncCart() {
	if p.purchase == nil {
		return
	}
	if user, ok := p.findUser(p.purchase.userID); ok {
		p.purchase.cart.SetBalance(user.Coins)
	}
}

func (p *Players) findUser(id uint) (models.User, bool) {
	for _, user := range p.users {
		if user.ID == id {
			return user, true
		}
	}
	return models.User{}, false
}

func (p *Players) findSlice(id uint) (models.PizzaSlice, bool) {
	for _, slice := range p.slices {
		if slice.ID == id {
			return slice, true
		}
	}
	return models.PizzaSlice{}, false
}

// OpenPurchase opens the purchase modal for a user with an empty cart
func (p *Players) OpenPurchase(userID uint) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.mounted {
		return ErrNotMounted
	}
	user, ok := p.findUser(userID)
	if !ok {
		return ErrUnknownPlayer
	}
	p.purchase = &purchaseModal{userID: userID, cart: NewCart(user.Coins)}
	return nil
}

// ClosePurchase cancels the purchase. The cart is discarded.
func (p *Players) ClosePurchase() {
	p.mu.Lock()
	p.purchase = nil
	p.mu.Unlock()
}

// AddToCart adds one unit of a catalog slice to the open cart
func (p *Players) AddToCart(sliceID uint) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.purchase == nil {
		return ErrNoModal
	}
	slice, ok := p.findSlice(sliceID)
	if !ok {
		return ErrUnknownSlice
	}
	return p.purchase.cart.Add(slice)
}

// RemoveFromCart removes one unit of a slice from the open cart
func (p *Players) RemoveFromCart(sliceID uint) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.purchase == nil {
		return ErrNoModal
	}
	p.purchase.cart.Remove(sliceID)
	return nil
}

// CompletePurchase submits the open cart. The balance is re-checked first
// against the freshest known value; the backend checks it again and its
// answer wins.
func (p *Players) CompletePurchase(ctx context.Context) (*models.PurchaseResult, error) {
	p.mu.Lock()
	if !p.mounted {
		p.mu.Unlock()
		return nil, ErrNotMounted
	}
	modal := p.purchase
	if modal == nil {
		p.mu.Unlock()
		return nil, ErrNoModal
	}
	if modal.submitting {
		p.mu.Unlock()
		return nil, ErrBusy
	}
	user, ok := p.findUser(modal.userID)
	if !ok {
		p.failure(msgPurchaseFailed)
		p.mu.Unlock()
		return nil, ErrUnknownPlayer
	}
	modal.cart.SetBalance(user.Coins)
	if modal.cart.Empty() {
		p.mu.Unlock()
		return nil, apperr.ErrEmptyCart
	}
	if !modal.cart.CanComplete() {
		p.failure(msgNotEnoughCoins)
		p.mu.Unlock()
		return nil, apperr.ErrInsufficientCoins
	}
	req := modal.cart.Request(modal.userID)
	modal.submitting = true
	gen := p.generation
	p.mu.Unlock()

	reqCtx, cancel := dispatchContext(ctx)
	result, err := p.gateway.Purchase(reqCtx, req)
	cancel()

	p.mu.Lock()
	if !p.current(gen) {
		p.mu.Unlock()
		return result, err
	}
	modal.submitting = false
	if err != nil {
		zap.L().Warn("purchase failed", zap.Uint("user_id", req.UserID), zap.Error(err))
		if errors.Is(err, apperr.ErrInsufficientCoins) {
			p.failure(msgNotEnoughCoins)
		} else {
			p.failure(msgPurchaseFailed)
		}
		p.mu.Unlock()
		return nil, err
	}

	if p.purchase == modal {
		p.purchase = nil
	}
	for i := range p.users {
		if p.users[i].ID == req.UserID {
			p.users[i].Coins = result.Coins
		}
	}
	p.success(msgPurchaseDone)
	p.mu.Unlock()

	p.refreshUsers(ctx, gen)
	return result, nil
}

// OpenHistory fetches a user's purchase records and opens the history modal
func (p *Players) OpenHistory(ctx context.Context, userID uint) error {
	p.mu.Lock()
	if !p.mounted {
		p.mu.Unlock()
		return ErrNotMounted
	}
	if _, ok := p.findUser(userID); !ok {
		p.mu.Unlock()
		return ErrUnknownPlayer
	}
	gen := p.generation
	p.mu.Unlock()

	reqCtx, cancel := dispatchContext(ctx)
	records, err := p.gateway.History(reqCtx, userID)
	cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.current(gen) {
		return ErrNotMounted
	}
	if err != nil {
		zap.L().Warn("failed to fetch purchase history", zap.Uint("user_id", userID), zap.Error(err))
		p.failure(msgHistoryFailed)
		return err
	}
	p.history = &historyModal{
		userID:  userID,
		records: records,
		marking: make(map[uint]bool),
	}
	return nil
}

// CloseHistory closes the history modal
func (p *Players) CloseHistory() {
	p.mu.Lock()
	p.history = nil
	p.mu.Unlock()
}

// MarkEaten logs one record of the selected user as eaten. On success the
// record and the user's eaten count are patched in place, without a
// re-fetch. On failure nothing changes.
func (p *Players) MarkEaten(ctx context.Context, recordID uint) error {
	p.mu.Lock()
	modal := p.history
	if modal == nil {
		p.mu.Unlock()
		return ErrNoModal
	}
	idx := -1
	for i, record := range modal.records {
		if record.ID == recordID {
			idx = i
			break
		}
	}
	if idx < 0 || modal.records[idx].UserID != modal.userID {
		p.failure(msgSliceFailed)
		p.mu.Unlock()
		return apperr.ErrNotOwner
	}
	if modal.records[idx].Eaten() {
		p.failure(msgSliceFailed)
		p.mu.Unlock()
		return apperr.ErrAlreadyEaten
	}
	if modal.marking[recordID] {
		p.mu.Unlock()
		return ErrBusy
	}
	modal.marking[recordID] = true
	req := models.MarkEatenRequest{ID: recordID, UserID: modal.userID}
	gen := p.generation
	p.mu.Unlock()

	reqCtx, cancel := dispatchContext(ctx)
	result, err := p.gateway.MarkEaten(reqCtx, req)
	cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	delete(modal.marking, recordID)
	if !p.current(gen) {
		return err
	}
	if err != nil {
		zap.L().Warn("failed to log pizza slice",
			zap.Uint("purchase_id", recordID),
			zap.Uint("user_id", req.UserID),
			zap.Error(err),
		)
		p.failure(msgSliceFailed)
		return err
	}

	for i := range modal.records {
		if modal.records[i].ID == recordID {
			modal.records[i].EatenAt = result.Record.EatenAt
		}
	}
	for i := range p.users {
		if p.users[i].ID == req.UserID {
			p.users[i].NumberOfPizzaEaten = result.NumberOfPizzaEaten
		}
	}
	p.success(msgSliceEaten)
	return nil
}

// RequestDelete opens the delete confirmation for a user
func (p *Players) RequestDelete(userID uint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.mounted {
		return ErrNotMounted
	}
	if _, ok := p.findUser(userID); !ok {
		return ErrUnknownPlayer
	}
	p.confirmDelete = userID
	return nil
}

// CancelDelete closes the delete confirmation without deleting
func (p *Players) CancelDelete() {
	p.mu.Lock()
	p.confirmDelete = 0
	p.mu.Unlock()
}

// ConfirmDelete deletes the user awaiting confirmation and drops it from the
// local list
func (p *Players) ConfirmDelete(ctx context.Context) error {
	p.mu.Lock()
	userID := p.confirmDelete
	if userID == 0 {
		p.mu.Unlock()
		return ErrNoModal
	}
	p.confirmDelete = 0
	gen := p.generation
	p.mu.Unlock()

	reqCtx, cancel := dispatchContext(ctx)
	err := p.gateway.DeleteUser(reqCtx, userID)
	cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.current(gen) {
		return err
	}
	if err != nil {
		zap.L().Warn("failed to delete user", zap.Uint("user_id", userID), zap.Error(err))
		p.failure(msgDeleteFailed)
		return err
	}

	p.users = removeUser(p.users, userID)
	if p.purchase != nil && p.purchase.userID == userID {
		p.purchase = nil
	}
	if p.history != nil && p.history.userID == userID {
		p.history = nil
	}
	p.success(msgUserDeleted)
	return nil
}

// CatalogLine is one selectable slice in the purchase modal
type CatalogLine struct {
	Slice    models.PizzaSlice
	Quantity int
	CanAdd   bool
}

// PurchaseView is the open purchase modal
type PurchaseView struct {
	User        models.User
	Catalog     []CatalogLine
	Lines       []CartItem
	Total       int
	Balance     int
	Remaining   int
	CanComplete bool
	Submitting  bool
}

// HistoryView is the open history modal
type HistoryView struct {
	User    models.User
	Records []models.PurchaseRecord
	Empty   string
}

// PlayersView is what the player management page renders
type PlayersView struct {
	Loading       bool
	Error         string
	Users         []models.User
	Empty         string
	Purchase      *PurchaseView
	History       *HistoryView
	ConfirmDelete *models.User
	Notice        *Notice
}

// View returns a copy of the screen state and consumes the pending notice
func (p *Players) View() PlayersView {
	p.mu.Lock()
	defer p.mu.Unlock()

	view := PlayersView{
		Loading: p.loading,
		Error:   p.loadErr,
		Users:   append([]models.User(nil), p.users...),
		Notice:  p.take(),
	}
	if !view.Loading && view.Error == "" && len(view.Users) == 0 {
		view.Empty = msgNoPlayers
	}

	if p.purchase != nil {
		user, _ := p.findUser(p.purchase.userID)
		cart := p.purchase.cart
		pv := &PurchaseView{
			User:        user,
			Lines:       cart.Items(),
			Total:       cart.Total(),
			Balance:     cart.Balance(),
			Remaining:   cart.Balance() - cart.Total(),
			CanComplete: cart.CanComplete() && !p.purchase.submitting,
			Submitting:  p.purchase.submitting,
		}
		for _, slice := range p.slices {
			pv.Catalog = append(pv.Catalog, CatalogLine{
				Slice:    slice,
				Quantity: cart.Quantity(slice.ID),
				CanAdd:   cart.CanAdd(slice),
			})
		}
		view.Purchase = pv
	}

	if p.history != nil {
		user, _ := p.findUser(p.history.userID)
		hv := &HistoryView{
			User:    user,
			Records: append([]models.PurchaseRecord(nil), p.history.records...),
		}
		if len(hv.Records) == 0 {
			hv.Empty = msgNoPurchases
		}
		view.History = hv
	}

	if p.confirmDelete != 0 {
		if user, ok := p.findUser(p.confirmDelete); ok {
			view.ConfirmDelete = &user
		}
	}
	return view
}
