package models

import "time"

type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Subject   string    `json:"subject,omitempty"`
	Semester  string    `json:"semester,omitempty"`
	Body      string    `json:"body"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteFilter narrows the dashboard listing. Empty fields match everything.
type NoteFilter struct {
	Subject  string
	Semester string
	Query    string
}

// NotePatch carries a partial note update; nil fields are left unchanged.
type NotePatch struct {
	Title    *string `json:"title"`
	Subject  *string `json:"subject"`
	Semester *string `json:"semester"`
	Body     *string `json:"body"`
}

type Attachment struct {
	ID        string    `json:"id"`
	NoteID    string    `json:"note_id"`
	Name      string    `json:"name"`
	Path      string    `json:"-"`
	MimeType  string    `json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
}

type ActivityLogEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	NoteID    string    `json:"note_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
