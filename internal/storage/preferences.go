package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/julianstephens/affirm/internal/constants"
	"github.com/julianstephens/affirm/internal/logger"
	"github.com/julianstephens/affirm/internal/models"
)

var (
	ErrPersonalListFull = fmt.Errorf("personal list is full (max %d)", constants.MaxPersonalAffirmations)
	ErrIndexOutOfRange  = errors.New("index out of range")
)

// Preferences gives typed access to the persisted records. A record that fails to
// parse is treated as absent and the default is returned.
type Preferences struct {
	store Provider
	mu    sync.Mutex
}

func NewPreferences(store Provider) *Preferences {
	return &Preferences{store: store}
}

// readJSON reports whether key held a parseable record.
func (p *Preferences) readJSON(key string, dst any) bool {
	raw, ok, err := p.store.GetRecord(key)
	if err != nil {
		logger.Warn("Failed to read record, using default", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		logger.Warn("Corrupt record, using default", "key", key, "error", err)
		return false
	}
	return true
}

func (p *Preferences) writeJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return p.store.PutRecord(key, data)
}

func (p *Preferences) GetReminderConfig() models.ReminderConfig {
	cfg := models.DefaultReminderConfig()
	if !p.readJSON(constants.RecordReminderSettings, &cfg) {
		return models.DefaultReminderConfig()
	}
	return cfg
}

func (p *Preferences) SaveReminderConfig(cfg models.ReminderConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return p.writeJSON(constants.RecordReminderSettings, cfg)
}

func (p *Preferences) GetPersonal() []string {
	var texts []string
	if !p.readJSON(constants.RecordPersonalAffirmations, &texts) || texts == nil {
		return []string{}
	}
	return texts
}

// AddPersonal validates and appends a personal affirmation.
func (p *Preferences) AddPersonal(text string) (string, error) {
	text, err := models.NormalizePersonalText(text)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	texts := p.GetPersonal()
	if len(texts) >= constants.MaxPersonalAffirmations {
		return "", ErrPersonalListFull
	}
	texts = append(texts, text)
	if err := p.writeJSON(constants.RecordPersonalAffirmations, texts); err != nil {
		return "", err
	}
	return text, nil
}

// RemovePersonal deletes the entry at index and returns its text.
func (p *Preferences) RemovePersonal(index int) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	texts := p.GetPersonal()
	if index < 0 || index >= len(texts) {
		return "", fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(texts))
	}
	removed := texts[index]
	texts = append(texts[:index], texts[index+1:]...)
	if err := p.writeJSON(constants.RecordPersonalAffirmations, texts); err != nil {
		return "", err
	}
	return removed, nil
}

func (p *Preferences) GetEnabledCategories() models.EnabledCategories {
	var keys []string
	if !p.readJSON(constants.RecordEnabledCategories, &keys) {
		return nil
	}
	return models.EnabledCategories(keys)
}

// SaveEnabledCategories persists the restriction; an empty list removes it.
func (p *Preferences) SaveEnabledCategories(keys []string) error {
	if len(keys) == 0 {
		return p.store.DeleteRecord(constants.RecordEnabledCategories)
	}
	return p.writeJSON(constants.RecordEnabledCategories, keys)
}

func (p *Preferences) GetSentLog() models.SentLog {
	var log models.SentLog
	if !p.readJSON(constants.RecordRemindersSent, &log) {
		return models.NewSentLog("")
	}
	return log
}

func (p *Preferences) SaveSentLog(log models.SentLog) error {
	return p.writeJSON(constants.RecordRemindersSent, log)
}

func (p *Preferences) GetPermission() constants.PermissionState {
	var state constants.PermissionState
	if !p.readJSON(constants.RecordNotificationPerm, &state) {
		return constants.PermissionDefault
	}
	switch state {
	case constants.PermissionGranted, constants.PermissionDenied:
		return state
	default:
		return constants.PermissionDefault
	}
}

func (p *Preferences) SavePermission(state constants.PermissionState) error {
	return p.writeJSON(constants.RecordNotificationPerm, state)
}
