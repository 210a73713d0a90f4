package model

import "time"

// FormState is the mutable state of one form session. It is owned by a single
// step controller; collaborators only ever see copies.
type FormState struct {
	SessionID   string  `json:"sessionId"`
	CurrentStep int     `json:"currentStep"`
	Answers     Answers `json:"answers"`
}

// Clone returns a deep copy of the state.
func (s FormState) Clone() FormState {
	s.Answers = s.Answers.Clone()
	return s
}

// Snapshot is the persisted form of a FormState. RecordID carries the
// server-side lead identifier once a remote sync succeeded.
type Snapshot struct {
	FormID   string    `json:"formId,omitempty"`
	RecordID string    `json:"recordId,omitempty"`
	SavedAt  time.Time `json:"savedAt,omitempty"`
	FormState
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	s.FormState = s.FormState.Clone()
	return s
}
