package store

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"roster/record"
)

// Person is one stored document. Email holds the derived duplicate key,
// lowercased, or is empty when the document has none.
type Person struct {
	ID        uint           `gorm:"primaryKey"`
	Email     string         `gorm:"index;size:320"`
	Data      datatypes.JSON `gorm:"type:json"`
	CreatedAt time.Time      `gorm:"index"`
	UpdatedAt time.Time
}

func (p Person) Record() (record.Record, error) {
	var r record.Record
	if len(p.Data) == 0 {
		return r, nil
	}
	err := json.Unmarshal(p.Data, &r)
	return r, err
}

// Upload is one ingestion attempt, from the HTTP endpoint or the spool
// runner.
type Upload struct {
	ID        uint   `gorm:"primaryKey"`
	BatchID   string `gorm:"index;size:36"`
	Source    string `gorm:"index:idx_upload_source_sha;size:1024"`
	SHA256    string `gorm:"index:idx_upload_source_sha;size:64"`
	SizeBytes int64
	Added     int
	Skipped   int
	Message   string    `gorm:"size:128"`
	Error     string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index"`
}

// Entry is a stored document as returned to callers.
type Entry struct {
	ID        uint
	Record    record.Record
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MarshalJSON renders the document fields in order, framed by _id and the
// timestamps.
func (e Entry) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(e.Record)
	if err != nil {
		return nil, err
	}
	head, err := json.Marshal(map[string]uint{"_id": e.ID})
	if err != nil {
		return nil, err
	}
	tail, err := json.Marshal(struct {
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}{e.CreatedAt, e.UpdatedAt})
	if err != nil {
		return nil, err
	}
	out := append([]byte{}, head[:len(head)-1]...)
	if len(body) > 2 {
		out = append(out, ',')
		out = append(out, body[1:len(body)-1]...)
	}
	out = append(out, ',')
	out = append(out, tail[1:]...)
	return out, nil
}

func entryOf(p Person) (Entry, error) {
	r, err := p.Record()
	if err != nil {
		return Entry{}, err
	}
	return Entry{ID: p.ID, Record: r, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt}, nil
}
