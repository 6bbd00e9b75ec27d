// Package session sequences one operator's checkout flow:
// Catalogue -> Identify -> Checkout, behind a login gate.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/kozaktomas/cashier/internal/apperr"
	"github.com/kozaktomas/cashier/internal/backend"
	"github.com/kozaktomas/cashier/internal/capture"
	"github.com/kozaktomas/cashier/internal/cart"
	"github.com/kozaktomas/cashier/internal/checkout"
	"github.com/kozaktomas/cashier/internal/identity"
	"github.com/kozaktomas/cashier/internal/logging"
	"github.com/kozaktomas/cashier/internal/metrics"
	"github.com/kozaktomas/cashier/internal/tokenstore"
)

// Operator-facing messages.
const (
	MsgLoginFailed       = "Login failed"
	MsgInventoryFailed   = "Error loading items"
	MsgSelectItems       = "Select at least one item to continue."
	MsgAlreadyCommitted  = "Transaction already recorded. Start the next customer."
	MsgSubmitInProgress  = "Transaction is being submitted."
	MsgAlreadyRecognised = "A face has already been recognised. Reset to capture again."
	MsgCaptureDisabled   = "Face capture is not configured."
)

// ErrLoggedOut is returned by every operation that needs an operator token.
var ErrLoggedOut = errors.New("not logged in")

// ErrSuperseded is returned when the session moved on while a backend call
// was in flight; the call's result was discarded.
var ErrSuperseded = errors.New("session changed during the request")

// Backend is everything the controller needs from the cashier backend.
type Backend interface {
	identity.Directory
	checkout.Ledger
	capture.Uploader
	Login(ctx context.Context, creds backend.Credentials) (string, error)
	SetToken(token string)
	Inventory(ctx context.Context) ([]backend.Item, error)
}

// State is a point-in-time view of the session for display.
type State struct {
	LoggedIn      bool                 `json:"logged_in"`
	Step          Step                 `json:"step"`
	Cart          []cart.Line          `json:"cart"`
	SelectedCount int                  `json:"selected_count"`
	Identity      identity.State       `json:"identity"`
	Committed     bool                 `json:"committed"`
	Transaction   *backend.Transaction `json:"transaction,omitempty"`
	Message       string               `json:"message,omitempty"`
	LoginError    string               `json:"login_error,omitempty"`
	Capture       string               `json:"capture"`
}

// Controller owns the session state of one operator serving one customer at
// a time. Its methods are safe for concurrent use; backend calls run without
// holding the lock and their results are dropped if the session moved on.
type Controller struct {
	be        Backend
	store     tokenstore.Store
	logger    *slog.Logger
	metrics   *metrics.Metrics
	resolver  *identity.Resolver
	submitter *checkout.Submitter
	events    *capture.EventBroadcaster

	camera     capture.Camera
	detector   capture.Detector
	captureCfg capture.Config
	enrollBase string

	mu         sync.Mutex
	gen        uint64
	token      string
	step       Step
	cart       *cart.Cart
	committed  bool
	submitting bool
	lastTx     *backend.Transaction
	message    string
	loginError string
	loop       *capture.Loop
	stopLoop   context.CancelFunc
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithCapture enables the capture loop with the given camera and detector.
func WithCapture(camera capture.Camera, detector capture.Detector, cfg capture.Config) Option {
	return func(c *Controller) {
		c.camera = camera
		c.detector = detector
		c.captureCfg = cfg
	}
}

// WithEnrollmentBase sets the customer app used for new-face enrollment.
func WithEnrollmentBase(base string) Option {
	return func(c *Controller) { c.enrollBase = base }
}

// New creates a logged out controller. Call Restore to pick up a stored token.
func New(be Backend, store tokenstore.Store, opts ...Option) *Controller {
	c := &Controller{
		be:     be,
		store:  store,
		logger: logging.Discard(),
		events: &capture.EventBroadcaster{},
		step:   StepLoggedOut,
		cart:   cart.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.resolver = identity.NewResolver(be,
		identity.WithLogger(c.logger),
		identity.WithMetrics(c.metrics),
		identity.WithEnrollmentBase(c.enrollBase),
	)
	c.submitter = checkout.NewSubmitter(be, c.logger, c.metrics)
	return c
}

// Events returns the broadcaster that receives capture loop events.
func (c *Controller) Events() *capture.EventBroadcaster {
	return c.events
}

// Restore loads a persisted token. An empty token leaves the session logged out.
func (c *Controller) Restore(ctx context.Context) error {
	token, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore token: %w", err)
	}
	if token == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.be.SetToken(token)
	c.token = token
	c.step = StepCatalogue
	c.logger.Info("session restored")
	return nil
}

// LoggedIn reports whether an operator token is held.
func (c *Controller) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != ""
}

// Login authenticates the operator. On failure the backend's detail is
// shown verbatim and the session stays logged out.
func (c *Controller) Login(ctx context.Context, creds backend.Credentials) error {
	const op = "login"

	token, err := c.be.Login(ctx, creds)
	c.metrics.ObserveLogin(err == nil)
	if err == nil && token == "" {
		err = apperr.Backend(op, http.StatusOK, "")
	}
	if err != nil {
		err = apperr.WithFallback(err, op, MsgLoginFailed)
		c.mu.Lock()
		c.loginError = apperr.Message(err, MsgLoginFailed)
		c.mu.Unlock()
		c.logger.Warn("login failed", "shop", creds.Shop, "account", creds.Account, "status", apperr.Status(err))
		return err
	}

	if serr := c.store.Save(ctx, token); serr != nil {
		c.logger.Warn("could not persist token", "error", serr)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	c.token = token
	c.step = StepCatalogue
	c.loginError = ""
	c.logger.Info("operator logged in", "shop", creds.Shop, "account", creds.Account)
	return nil
}

// Logout forgets the token and discards all customer state.
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	c.resetLocked()
	c.token = ""
	c.step = StepLoggedOut
	c.loginError = ""
	c.mu.Unlock()

	c.be.SetToken("")
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	c.logger.Info("operator logged out")
	return nil
}

// resetLocked clears everything scoped to the current customer.
func (c *Controller) resetLocked() {
	c.stopCaptureLocked()
	c.gen++
	c.cart.Clear()
	c.resolver.Reset()
	c.committed = false
	c.submitting = false
	c.lastTx = nil
	c.message = ""
}

// requireLocked checks the login gate and that the session is at one of steps.
func (c *Controller) requireLocked(op string, steps ...Step) error {
	if c.token == "" {
		return ErrLoggedOut
	}
	if len(steps) == 0 {
		return nil
	}
	for _, s := range steps {
		if c.step == s {
			return nil
		}
	}
	return &apperr.Error{
		Kind:   apperr.KindValidation,
		Op:     op,
		Status: http.StatusConflict,
		Detail: fmt.Sprintf("Not available in the %s step.", c.step),
	}
}

// Inventory lists the shop's items.
func (c *Controller) Inventory(ctx context.Context) ([]backend.Item, error) {
	const op = "list inventory"

	c.mu.Lock()
	err := c.requireLocked(op)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	items, err := c.be.Inventory(ctx)
	if err != nil {
		c.logger.Warn("inventory failed", "error", err)
		return nil, apperr.WithFallback(err, op, MsgInventoryFailed)
	}
	return items, nil
}

// SetQuantity sets an item's quantity in the catalogue.
func (c *Controller) SetQuantity(itemID string, qty int) error {
	return c.updateCart("set quantity", func(ct *cart.Cart) { ct.SetQuantity(itemID, qty) })
}

// Increment adds one unit of an item.
func (c *Controller) Increment(itemID string) error {
	return c.updateCart("increment", func(ct *cart.Cart) { ct.Increment(itemID) })
}

// Decrement removes one unit of an item.
func (c *Controller) Decrement(itemID string) error {
	return c.updateCart("decrement", func(ct *cart.Cart) { ct.Decrement(itemID) })
}

func (c *Controller) updateCart(op string, fn func(*cart.Cart)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLocked(op, StepCatalogue); err != nil {
		return err
	}
	fn(c.cart)
	return nil
}

// ProceedToIdentify moves from Catalogue to Identify. It is refused while
// nothing is selected.
func (c *Controller) ProceedToIdentify() error {
	const op = "proceed to identify"

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLocked(op, StepCatalogue); err != nil {
		return err
	}
	if c.cart.TotalSelectedCount() == 0 {
		return apperr.Validation(op, MsgSelectItems)
	}
	c.step = StepIdentify
	c.logger.Debug("step changed", "step", c.step)
	return nil
}

// BackToCatalogue returns from Identify and abandons identification.
func (c *Controller) BackToCatalogue() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLocked("back to catalogue", StepIdentify); err != nil {
		return err
	}
	c.stopCaptureLocked()
	c.resolver.Reset()
	c.step = StepCatalogue
	c.logger.Debug("step changed", "step", c.step)
	return nil
}

// Search looks up a customer by username.
func (c *Controller) Search(ctx context.Context, username string) (*backend.Profile, error) {
	if err := c.require("search profile", StepIdentify); err != nil {
		return nil, err
	}
	return c.resolver.Search(ctx, username)
}

// ReceiveBiometric records a recognition result.
func (c *Controller) ReceiveBiometric(rec backend.Recognition) (identity.BiometricMatch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLocked("receive biometric", StepIdentify); err != nil {
		return identity.BiometricMatch{}, err
	}
	match, err := c.resolver.ReceiveBiometric(rec)
	if err != nil {
		return identity.BiometricMatch{}, apperr.WithFallback(err, "receive biometric", capture.MsgRecognitionFailed)
	}
	c.stopCaptureLocked()
	return match, nil
}

// RecogniseImage uploads a face image supplied by the front end and records
// the result like a capture from the loop.
func (c *Controller) RecogniseImage(ctx context.Context, image []byte) (identity.BiometricMatch, error) {
	const op = "biometric recognize"

	c.mu.Lock()
	if err := c.requireLocked(op, StepIdentify); err != nil {
		c.mu.Unlock()
		return identity.BiometricMatch{}, err
	}
	gen := c.gen
	c.mu.Unlock()

	rec, err := c.be.Recognise(ctx, image)
	if err != nil {
		c.logger.Warn("recognition failed", "error", err)
		return identity.BiometricMatch{}, apperr.WithFallback(err, op, capture.MsgRecognitionFailed)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || c.step != StepIdentify {
		return identity.BiometricMatch{}, ErrSuperseded
	}
	match, err := c.resolver.ReceiveBiometric(*rec)
	if err != nil {
		return identity.BiometricMatch{}, apperr.WithFallback(err, op, capture.MsgRecognitionFailed)
	}
	c.stopCaptureLocked()
	return match, nil
}

// RequestCorrection marks the biometric match as wrong.
func (c *Controller) RequestCorrection() error {
	if err := c.require("request correction", StepIdentify); err != nil {
		return err
	}
	return c.resolver.RequestCorrection()
}

// Reconcile merges or corrects the biometric match against the manual one.
func (c *Controller) Reconcile(ctx context.Context, typ identity.ReconcileType) error {
	if err := c.require("reconcile", StepIdentify); err != nil {
		return err
	}
	return c.resolver.Reconcile(ctx, typ)
}

// ResetIdentity clears all identity candidates and stops capture.
func (c *Controller) ResetIdentity() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLocked("reset identity", StepIdentify); err != nil {
		return err
	}
	c.stopCaptureLocked()
	c.resolver.Reset()
	return nil
}

// ContinueToCheckout confirms the best identity and moves to Checkout.
func (c *Controller) ContinueToCheckout() (backend.Profile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLocked("continue to checkout", StepIdentify); err != nil {
		return backend.Profile{}, err
	}
	profile, err := c.resolver.ContinueWithBest()
	if err != nil {
		return backend.Profile{}, err
	}
	c.stopCaptureLocked()
	c.committed = false
	c.lastTx = nil
	c.message = ""
	c.step = StepCheckout
	c.logger.Debug("step changed", "step", c.step, "uid", profile.ID)
	return profile, nil
}

// CheckoutSummary fetches current details for the cart's items.
func (c *Controller) CheckoutSummary(ctx context.Context) (*checkout.Summary, error) {
	c.mu.Lock()
	if err := c.requireLocked("checkout summary", StepCheckout); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	customer, _ := c.resolver.Confirmed()
	items := c.cart.Clone()
	c.mu.Unlock()

	return c.submitter.Summary(ctx, items, customer)
}

// Submit records the transaction for the confirmed customer. A committed
// transaction is not sent again until the next customer or a new
// confirmation.
func (c *Controller) Submit(ctx context.Context) (backend.Transaction, error) {
	const op = "submit transaction"

	c.mu.Lock()
	if err := c.requireLocked(op, StepCheckout); err != nil {
		c.mu.Unlock()
		return backend.Transaction{}, err
	}
	switch {
	case c.committed:
		c.mu.Unlock()
		return backend.Transaction{}, &apperr.Error{Kind: apperr.KindValidation, Op: op, Status: http.StatusConflict, Detail: MsgAlreadyCommitted}
	case c.submitting:
		c.mu.Unlock()
		return backend.Transaction{}, &apperr.Error{Kind: apperr.KindValidation, Op: op, Status: http.StatusConflict, Detail: MsgSubmitInProgress}
	}
	customer, _ := c.resolver.Confirmed()
	items := c.cart.Clone()
	gen := c.gen
	c.submitting = true
	c.message = ""
	c.mu.Unlock()

	tx, err := c.submitter.Submit(ctx, items, customer)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return tx, ErrSuperseded
	}
	c.submitting = false
	if err != nil {
		c.message = apperr.Message(err, checkout.MsgTransactionFailed)
		return tx, err
	}
	c.committed = true
	c.lastTx = &tx
	c.message = checkout.MsgTransactionSuccess
	return tx, nil
}

// BackToIdentify returns from Checkout keeping the identity state.
func (c *Controller) BackToIdentify() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLocked("back to identify", StepCheckout); err != nil {
		return err
	}
	c.step = StepIdentify
	c.message = ""
	c.logger.Debug("step changed", "step", c.step)
	return nil
}

// NextCustomer clears the cart and identity and starts over at Catalogue.
func (c *Controller) NextCustomer() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLocked("next customer", StepCheckout); err != nil {
		return err
	}
	c.resetLocked()
	c.step = StepCatalogue
	c.logger.Debug("step changed", "step", c.step)
	return nil
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{
		LoggedIn:      c.token != "",
		Step:          c.step,
		Cart:          c.cart.Lines(),
		SelectedCount: c.cart.TotalSelectedCount(),
		Identity:      c.resolver.Snapshot(),
		Committed:     c.committed,
		Message:       c.message,
		LoginError:    c.loginError,
		Capture:       capture.StateIdle.String(),
	}
	if c.lastTx != nil {
		tx := *c.lastTx
		s.Transaction = &tx
	}
	if c.loop != nil {
		s.Capture = c.loop.State().String()
	}
	return s
}

// Close stops background work.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopCaptureLocked()
}

func (c *Controller) require(op string, steps ...Step) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requireLocked(op, steps...)
}
