package constants

const (
	// Persisted record keys
	RecordReminderSettings     = "reminder-settings"
	RecordPersonalAffirmations = "personal-affirmations"
	RecordEnabledCategories    = "enabled-categories"
	RecordRemindersSent        = "reminders-sent"
	RecordNotificationPerm     = "notification-permission"

	// Sent-log date field inside the reminders-sent record
	SentLogDateField = "_date"

	// Default reminder times
	DefaultMorningTime = "08:00"
	DefaultNoonTime    = "13:00"
	DefaultEveningTime = "21:00"

	// Default data resource location relative to the origin
	DataResourcePath = "./data/affirmations.json"
	RootDocumentPath = "./index.html"

	DefaultListenAddr = "127.0.0.1:8787"
)

// InstallAssets lists the assets that make up one cache snapshot.
var InstallAssets = []string{
	"./",
	"./index.html",
	"./style.css",
	"./app.js",
	"./manifest.json",
	DataResourcePath,
}
