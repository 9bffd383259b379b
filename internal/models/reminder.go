package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/julianstephens/affirm/internal/constants"
)

type ReminderSlot struct {
	Enabled bool   `json:"enabled"`
	Time    string `json:"time"` // HH:MM format
}

// ReminderConfig is persisted as a single record under reminder-settings.
type ReminderConfig struct {
	Morning ReminderSlot `json:"morning"`
	Noon    ReminderSlot `json:"noon"`
	Evening ReminderSlot `json:"evening"`
}

func DefaultReminderConfig() ReminderConfig {
	return ReminderConfig{
		Morning: ReminderSlot{Time: constants.DefaultMorningTime},
		Noon:    ReminderSlot{Time: constants.DefaultNoonTime},
		Evening: ReminderSlot{Time: constants.DefaultEveningTime},
	}
}

func (c ReminderConfig) Slot(slot constants.Slot) ReminderSlot {
	switch slot {
	case constants.SlotMorning:
		return c.Morning
	case constants.SlotNoon:
		return c.Noon
	case constants.SlotEvening:
		return c.Evening
	default:
		return ReminderSlot{}
	}
}

func (c *ReminderConfig) SetSlot(slot constants.Slot, rs ReminderSlot) error {
	switch slot {
	case constants.SlotMorning:
		c.Morning = rs
	case constants.SlotNoon:
		c.Noon = rs
	case constants.SlotEvening:
		c.Evening = rs
	default:
		return fmt.Errorf("unknown reminder slot %q", slot)
	}
	return nil
}

func (c ReminderConfig) Validate() error {
	for _, slot := range constants.Slots {
		rs := c.Slot(slot)
		if !rs.Enabled && rs.Time == "" {
			continue
		}
		if _, err := ParseMinutes(rs.Time); err != nil {
			return fmt.Errorf("%s: %w", slot, err)
		}
	}
	return nil
}

// ParseSlot validates a slot name.
func ParseSlot(s string) (constants.Slot, error) {
	for _, slot := range constants.Slots {
		if string(slot) == s {
			return slot, nil
		}
	}
	return "", fmt.Errorf("unknown reminder slot %q (expected morning, noon or evening)", s)
}

// SlotTitle is the notification title shown for a slot.
func SlotTitle(slot constants.Slot) string {
	switch slot {
	case constants.SlotMorning:
		return "Good morning ☀️"
	case constants.SlotNoon:
		return "A midday moment 🌤"
	case constants.SlotEvening:
		return "Good evening 🌙"
	default:
		return constants.ShareTitle
	}
}

// ParseMinutes converts an HH:MM string to minutes since midnight.
func ParseMinutes(hhmm string) (int, error) {
	t, err := time.Parse(constants.TimeFormat, hhmm)
	if err != nil {
		return 0, fmt.Errorf("invalid time format (expected HH:MM): %w", err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// SentLog records which slots already fired on Date.
type SentLog struct {
	Date  string
	Slots map[constants.Slot]bool
}

func NewSentLog(date string) SentLog {
	return SentLog{Date: date, Slots: map[constants.Slot]bool{}}
}

func (l SentLog) IsSent(slot constants.Slot) bool {
	return l.Slots[slot]
}

func (l *SentLog) MarkSent(slot constants.Slot) {
	if l.Slots == nil {
		l.Slots = map[constants.Slot]bool{}
	}
	l.Slots[slot] = true
}

// MarshalJSON writes the flat {"_date": "...", "<slot>": true} record shape.
func (l SentLog) MarshalJSON() ([]byte, error) {
	out := map[string]any{constants.SentLogDateField: l.Date}
	for slot, sent := range l.Slots {
		if sent {
			out[string(slot)] = true
		}
	}
	return json.Marshal(out)
}

func (l *SentLog) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*l = NewSentLog("")
	for k, v := range raw {
		if k == constants.SentLogDateField {
			if err := json.Unmarshal(v, &l.Date); err != nil {
				return fmt.Errorf("parsing %s: %w", constants.SentLogDateField, err)
			}
			continue
		}
		slot, err := ParseSlot(k)
		if err != nil {
			continue
		}
		var sent bool
		if err := json.Unmarshal(v, &sent); err != nil {
			return fmt.Errorf("parsing %s: %w", k, err)
		}
		if sent {
			l.Slots[slot] = true
		}
	}
	return nil
}
