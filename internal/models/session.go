package models

// SessionStatus represents the status of a scoring session.
type SessionStatus string

const (
	SessionStatusPending  SessionStatus = "pending"
	SessionStatusParsing  SessionStatus = "parsing"
	SessionStatusScoring  SessionStatus = "scoring"
	SessionStatusComplete SessionStatus = "complete"
	SessionStatusError    SessionStatus = "error"
)

// ScoreSession represents one batch scoring run over an uploaded dataset.
type ScoreSession struct {
	ID               string        `json:"id"`
	FileID           string        `json:"fileId"`
	Status           SessionStatus `json:"status"`
	Progress         float64       `json:"progress"` // 0-100
	RecordCount      int           `json:"recordCount,omitempty"`
	ValidCount       int           `json:"validCount,omitempty"`
	ExcludedCount    int           `json:"excludedCount,omitempty"`
	ClusterCount     int           `json:"clusterCount,omitempty"` // effective k
	Inertia          float64       `json:"inertia,omitempty"`      // total within-cluster distance
	Converged        bool          `json:"converged"`
	TrialsRun        int           `json:"trialsRun,omitempty"`
	ProcessingTimeMs int64         `json:"processingTimeMs,omitempty"`
	ParserName       string        `json:"parserName,omitempty"`
	RowErrors        []RowError    `json:"rowErrors,omitempty"`
	Error            string        `json:"error,omitempty"`
}

// RowError reports a source row that could not be read at all.
type RowError struct {
	Line    int    `json:"line"`
	Content string `json:"content"`
	Reason  string `json:"reason"`
}

// NewScoreSession creates a ScoreSession in pending status.
func NewScoreSession(id, fileID string) *ScoreSession {
	return &ScoreSession{
		ID:        id,
		FileID:    fileID,
		Status:    SessionStatusPending,
		Progress:  0,
		RowErrors: make([]RowError, 0),
	}
}
