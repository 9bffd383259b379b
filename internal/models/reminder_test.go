package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/julianstephens/affirm/internal/constants"
)

func TestReminderConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ReminderConfig
		wantErr bool
	}{
		{
			name:    "defaults",
			cfg:     DefaultReminderConfig(),
			wantErr: false,
		},
		{
			name: "enabled slot with bad time",
			cfg: ReminderConfig{
				Morning: ReminderSlot{Enabled: true, Time: "8am"},
			},
			wantErr: true,
		},
		{
			name: "enabled slot with empty time",
			cfg: ReminderConfig{
				Noon: ReminderSlot{Enabled: true},
			},
			wantErr: true,
		},
		{
			name:    "all disabled and empty",
			cfg:     ReminderConfig{},
			wantErr: false,
		},
		{
			name: "hour out of range",
			cfg: ReminderConfig{
				Evening: ReminderSlot{Enabled: true, Time: "25:00"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestReminderConfig_SetSlot(t *testing.T) {
	cfg := DefaultReminderConfig()
	if err := cfg.SetSlot(constants.SlotNoon, ReminderSlot{Enabled: true, Time: "12:30"}); err != nil {
		t.Fatalf("SetSlot failed: %v", err)
	}
	if got := cfg.Slot(constants.SlotNoon); !got.Enabled || got.Time != "12:30" {
		t.Errorf("unexpected noon slot: %+v", got)
	}
	if err := cfg.SetSlot("midnight", ReminderSlot{}); err == nil {
		t.Error("expected error for unknown slot")
	}
}

func TestParseMinutes(t *testing.T) {
	got, err := ParseMinutes("08:01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 481 {
		t.Errorf("expected 481, got %d", got)
	}
	if _, err := ParseMinutes("8:1"); err == nil {
		t.Error("expected error for malformed time")
	}
}

func TestSentLog_JSONShape(t *testing.T) {
	log := NewSentLog("2026-10-16")
	log.MarkSent(constants.SlotMorning)

	data, err := json.Marshal(log)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw failed: %v", err)
	}
	if raw["_date"] != "2026-10-16" {
		t.Errorf("expected _date field, got %v", raw)
	}
	if raw["morning"] != true {
		t.Errorf("expected morning=true, got %v", raw)
	}
	if _, ok := raw["noon"]; ok {
		t.Errorf("unsent slots must be omitted, got %v", raw)
	}
}

func TestSentLog_UnmarshalIgnoresUnknownKeys(t *testing.T) {
	var log SentLog
	err := json.Unmarshal([]byte(`{"_date":"2026-10-15","evening":true,"legacy":true,"noon":false}`), &log)
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if log.Date != "2026-10-15" {
		t.Errorf("expected date 2026-10-15, got %q", log.Date)
	}
	if !log.IsSent(constants.SlotEvening) {
		t.Error("expected evening to be sent")
	}
	if log.IsSent(constants.SlotNoon) || log.IsSent(constants.SlotMorning) {
		t.Errorf("unexpected sent slots: %v", log.Slots)
	}
}

func TestNormalizePersonalText(t *testing.T) {
	if _, err := NormalizePersonalText("   "); err != ErrEmptyAffirmation {
		t.Errorf("expected ErrEmptyAffirmation, got %v", err)
	}

	got, err := NormalizePersonalText("  I am calm  ")
	if err != nil || got != "I am calm" {
		t.Errorf("expected trimmed text, got %q (%v)", got, err)
	}

	if _, err := NormalizePersonalText(strings.Repeat("a", 201)); err != ErrAffirmationTooLong {
		t.Errorf("expected ErrAffirmationTooLong, got %v", err)
	}

	// Length is counted in characters, not bytes.
	if _, err := NormalizePersonalText(strings.Repeat("ש", 200)); err != nil {
		t.Errorf("200 multi-byte characters should be accepted, got %v", err)
	}
}

func TestDataset_CategoryName(t *testing.T) {
	ds := DefaultDataset()
	if got := ds.CategoryName("faith"); got != "Faith and Providence" {
		t.Errorf("unexpected name %q", got)
	}
	if got := ds.CategoryName(constants.CategoryPersonal); got != "Personal" {
		t.Errorf("unexpected personal name %q", got)
	}
	if got := ds.CategoryName("unknown"); got != "unknown" {
		t.Errorf("expected key fallback, got %q", got)
	}
	if err := (Dataset{}).Validate(); err != ErrEmptyDataset {
		t.Errorf("expected ErrEmptyDataset, got %v", err)
	}
}
