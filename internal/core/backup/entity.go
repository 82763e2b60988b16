package backup

import (
	"strings"
	"time"
)

// Status はバックアップ実行の状態です。IN_PROGRESS 以外は終端状態です。
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusSkipped    Status = "SKIPPED"
)

// WorkerSystem は定期実行による起動者です。
const WorkerSystem = "system"

// ParseStatus は大文字小文字を区別せずに状態を解釈します。
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}

// Valid は既知の状態かを返します。
func (s Status) Valid() bool {
	switch s {
	case StatusInProgress, StatusCompleted, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// Terminal は状態がこれ以上遷移しないかを返します。
func (s Status) Terminal() bool {
	return s.Valid() && s != StatusInProgress
}

// Backup は 1 回のバックアップ実行です。
type Backup struct {
	ID             int64
	Worker         string
	Status         Status
	StartedAt      time.Time
	EndedAt        *time.Time
	ArtifactBlobID *int64
}
