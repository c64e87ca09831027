package models

// Log is a free-text diagnostic message reported by a device. Rows are
// append-only and have no relationships.
type Log struct {
	Base
	Message string `json:"message"`
}

// Short returns a truncated form of the message for display.
func (l *Log) Short() string {
	if len(l.Message) > 50 {
		return l.Message[:50]
	}
	return l.Message
}

// AddLogs is the body of a device log ingestion request.
type AddLogs struct {
	Logs []string `json:"logs"`
}
