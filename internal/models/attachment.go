package models

import "time"

// Attachment is a file uploaded together with a request. Data is loaded only
// when the file itself is downloaded; listings carry metadata alone.
type Attachment struct {
	ID          string    `db:"id"`
	RequestID   string    `db:"request_id"`
	Filename    string    `db:"filename"`
	ContentType string    `db:"content_type"`
	Size        int64     `db:"size_bytes"`
	Data        []byte    `db:"data"`
	CreatedAt   time.Time `db:"created_at"`
}
