// Package app holds the application state and the actions that change it.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/julianstephens/affirm/internal/constants"
	"github.com/julianstephens/affirm/internal/logger"
	"github.com/julianstephens/affirm/internal/models"
	"github.com/julianstephens/affirm/internal/pool"
	"github.com/julianstephens/affirm/internal/share"
)

var ErrUnknownCategory = errors.New("unknown category")

// Preferences is the persisted user state the controller reads and writes.
type Preferences interface {
	GetPersonal() []string
	AddPersonal(text string) (string, error)
	RemovePersonal(index int) (string, error)
	GetEnabledCategories() models.EnabledCategories
	SaveEnabledCategories(keys []string) error
	GetReminderConfig() models.ReminderConfig
	SaveReminderConfig(cfg models.ReminderConfig) error
	GetPermission() constants.PermissionState
	SavePermission(state constants.PermissionState) error
}

// Reminders is the running reminder poll.
type Reminders interface {
	Start(ctx context.Context)
	Restart(ctx context.Context)
	Stop()
}

// Advisor receives reminder settings changes. Delivery is best effort.
type Advisor interface {
	UpdateReminders(ctx context.Context, cfg models.ReminderConfig) error
}

type Sharer interface {
	Share(ctx context.Context, text string) (share.Method, error)
}

// State is everything that changes while the application runs.
type State struct {
	Category string
	Current  *models.Affirmation
}

type Deps struct {
	Dataset   models.Dataset
	Prefs     Preferences
	Selector  *pool.Selector
	Reminders Reminders
	Advisor   Advisor
	Sharer    Sharer
}

// Controller owns State and serializes every action on it.
type Controller struct {
	deps Deps

	mu     sync.Mutex
	state  State
	closed bool
}

func New(deps Deps) *Controller {
	if deps.Selector == nil {
		deps.Selector = pool.NewSelector(nil)
	}
	if len(deps.Dataset.Affirmations) == 0 {
		deps.Dataset = models.DefaultDataset()
	}
	return &Controller{deps: deps, state: State{Category: constants.CategoryAll}}
}

func (c *Controller) Dataset() models.Dataset {
	return c.deps.Dataset
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	if s.Current != nil {
		cur := *s.Current
		s.Current = &cur
	}
	return s
}

func (c *Controller) candidates(category string) []models.Affirmation {
	return pool.Candidates(c.deps.Dataset.Affirmations, c.deps.Prefs.GetPersonal(), c.deps.Prefs.GetEnabledCategories(), category)
}

// Next picks a new affirmation for the selected category, avoiding the one on display.
func (c *Controller) Next() models.Affirmation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextLocked()
}

func (c *Controller) nextLocked() models.Affirmation {
	next, ok := c.deps.Selector.Pick(c.candidates(c.state.Category), c.state.Current)
	if !ok {
		next = models.DefaultDataset().Affirmations[0]
	}
	c.state.Current = &next
	return next
}

// SetCategory changes the filter and shows a new affirmation from it.
func (c *Controller) SetCategory(category string) (models.Affirmation, error) {
	if !c.validCategory(category) {
		return models.Affirmation{}, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Category = category
	return c.nextLocked(), nil
}

func (c *Controller) validCategory(category string) bool {
	if category == constants.CategoryAll || category == constants.CategoryPersonal {
		return true
	}
	_, ok := c.deps.Dataset.Categories[category]
	return ok
}

// CurrentText is the affirmation on display, or empty before the first pick.
func (c *Controller) CurrentText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Current == nil {
		return ""
	}
	return c.state.Current.Text
}

// RandomText picks from the whole pool without touching State.
func (c *Controller) RandomText() string {
	a, ok := c.deps.Selector.Pick(c.candidates(constants.CategoryAll), nil)
	if !ok {
		return ""
	}
	return a.Text
}

// CategoryName returns the display name of the given category key.
func (c *Controller) CategoryName(key string) string {
	if key == constants.CategoryAll {
		return "All"
	}
	return c.deps.Dataset.CategoryName(key)
}

// Categories lists the selectable filters: all, every registry category, then personal.
func (c *Controller) Categories() []string {
	keys := []string{constants.CategoryAll}
	keys = append(keys, c.deps.Dataset.CategoryKeys()...)
	return append(keys, constants.CategoryPersonal)
}

func (c *Controller) Personal() []string {
	return c.deps.Prefs.GetPersonal()
}

func (c *Controller) AddPersonal(text string) (string, error) {
	return c.deps.Prefs.AddPersonal(text)
}

// RemovePersonal deletes an entry. If it was on display it stays there until the next pick.
func (c *Controller) RemovePersonal(index int) (string, error) {
	return c.deps.Prefs.RemovePersonal(index)
}

func (c *Controller) EnabledCategories() models.EnabledCategories {
	return c.deps.Prefs.GetEnabledCategories()
}

// SetEnabledCategories restricts the built-in pool. Unknown keys are rejected.
func (c *Controller) SetEnabledCategories(keys []string) error {
	for _, k := range keys {
		if _, ok := c.deps.Dataset.Categories[k]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCategory, k)
		}
	}
	return c.deps.Prefs.SaveEnabledCategories(keys)
}

func (c *Controller) Reminders() models.ReminderConfig {
	return c.deps.Prefs.GetReminderConfig()
}

// SaveReminders persists cfg, restarts the poll and tells the agent.
func (c *Controller) SaveReminders(ctx context.Context, cfg models.ReminderConfig) error {
	if err := c.deps.Prefs.SaveReminderConfig(cfg); err != nil {
		return err
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if c.deps.Reminders != nil && !closed {
		c.deps.Reminders.Restart(ctx)
	}
	c.advise(ctx, cfg)
	return nil
}

func (c *Controller) advise(ctx context.Context, cfg models.ReminderConfig) {
	if c.deps.Advisor == nil {
		return
	}
	if err := c.deps.Advisor.UpdateReminders(ctx, cfg); err != nil {
		logger.Debug("Reminder update not delivered to agent", "error", err)
	}
}

// SetPermission records the notification permission. Granting it re-saves the reminder
// settings so the poll and the agent pick them up.
func (c *Controller) SetPermission(ctx context.Context, state constants.PermissionState) error {
	if err := c.deps.Prefs.SavePermission(state); err != nil {
		return err
	}
	if state != constants.PermissionGranted {
		return nil
	}
	return c.SaveReminders(ctx, c.deps.Prefs.GetReminderConfig())
}

func (c *Controller) Permission() constants.PermissionState {
	return c.deps.Prefs.GetPermission()
}

// Share hands the current affirmation to the share chain.
func (c *Controller) Share(ctx context.Context) (share.Method, error) {
	text := c.CurrentText()
	if text == "" {
		text = c.Next().Text
	}
	if c.deps.Sharer == nil {
		return "", errors.New("sharing is not configured")
	}
	return c.deps.Sharer.Share(ctx, share.Text(text))
}

// StartReminders begins the reminder poll for the controller's lifetime.
func (c *Controller) StartReminders(ctx context.Context) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if c.deps.Reminders != nil && !closed {
		c.deps.Reminders.Start(ctx)
	}
}

// Close stops everything the controller started. It is safe to call more than once.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.deps.Reminders != nil {
		c.deps.Reminders.Stop()
	}
	return nil
}
