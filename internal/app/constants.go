package app

const (
	Name           = "irrigo"
	ConfigFilename = "config.json"
	DBFilename     = "app.db"
	LogFilename    = "app.log"
	// LogRetentionDays bounds how long persisted device logs are kept.
	LogRetentionDays = 30
)
