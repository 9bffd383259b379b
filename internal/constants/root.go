package constants

import "time"

// Slot identifies one of the three daily reminder windows.
type Slot string

// PermissionState is the persisted answer to the notification permission prompt.
type PermissionState string

// MessageType names a message sent from the application to the background agent.
type MessageType string

const (
	AppName           = "affirm"
	DefaultConfigPath = "~/.config/affirm/affirm.db"
	DefaultSettings   = "~/.config/affirm/config.yaml"
	Version           = "v1.0.4"

	// CacheVersion is the snapshot name this build installs and serves from.
	CacheVersion = "affirmations-v1.0.4"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the standard time format used throughout the application (HH:MM)
	TimeFormat = "15:04"

	// Reminder polling. A tick landing more than DefaultMatchWindowMin-1 minutes
	// past the target misses the slot for the day.
	DefaultPollInterval   = 30 * time.Second
	DefaultMatchWindowMin = 2

	// Personal list bounds
	MaxPersonalAffirmations = 50
	MaxAffirmationLength    = 200

	// Category keys
	CategoryAll      = "all"
	CategoryPersonal = "personal"

	// Slots
	SlotMorning Slot = "morning"
	SlotNoon    Slot = "noon"
	SlotEvening Slot = "evening"

	// Permission states
	PermissionDefault PermissionState = "default"
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"

	// Agent messages
	MessageShowNotification MessageType = "SHOW_NOTIFICATION"
	MessageUpdateReminders  MessageType = "UPDATE_REMINDERS"

	// Notify constants
	AgentLockfileName       = "affirm-agent.lock"
	AgentSecretHeader       = "X-Affirm-Secret"
	AgentExecutablePrefix   = "affirm"
	NotificationTagPrefix   = "affirmation-"
	NotificationDedupe      = time.Minute
	DefaultNotificationBody = "Everything is exactly right for me"

	// Share
	ShareTitle  = "Affirmations"
	ShareSuffix = " - from Affirmations"
)

// Slots lists the reminder slots in display order.
var Slots = []Slot{SlotMorning, SlotNoon, SlotEvening}
