package models

import (
	"encoding/json"
	"time"
)

// Supported track file formats. The file content itself is opaque text:
// the server never parses it.
const (
	FileTypeGPX = "gpx"
	FileTypeKML = "kml"
)

const MaxTitleLen = 200

type Track struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	FileName    string    `json:"file_name"`
	FileType    string    `json:"file_type"`
	FileSize    int64     `json:"file_size"`
	TrackData   string    `json:"track_data"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type TrackCreateInput struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	FileName    string  `json:"file_name"`
	FileType    string  `json:"file_type"`
	FileSize    int64   `json:"file_size"`
	TrackData   string  `json:"track_data"`
}

// TrackUpdateInput carries a partial update. Title and Description track
// JSON key presence, so "omitted" and "explicitly null" stay distinct:
// an omitted field is left unchanged, an explicit null clears description.
type TrackUpdateInput struct {
	ID          int64          `json:"id"`
	Title       OptString      `json:"title"`
	Description OptNullString  `json:"description"`
}

// OptString is a string field that remembers whether its JSON key was
// present at all. Null is treated the same as omitted.
type OptString struct {
	Set   bool
	Value string
}

func (o *OptString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if err := json.Unmarshal(b, &o.Value); err != nil {
		return err
	}
	o.Set = true
	return nil
}

func (o OptString) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// OptNullString is a three-valued string field: omitted (Set=false),
// explicit null (Set=true, Valid=false) or a value (Set=true, Valid=true).
type OptNullString struct {
	Set   bool
	Valid bool
	Value string
}

func (o *OptNullString) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		return nil
	}
	if err := json.Unmarshal(b, &o.Value); err != nil {
		return err
	}
	o.Valid = true
	return nil
}

func (o OptNullString) MarshalJSON() ([]byte, error) {
	if !o.Set || !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// Ptr returns the field as *string for storage: nil when null.
func (o OptNullString) Ptr() *string {
	if !o.Valid {
		return nil
	}
	v := o.Value
	return &v
}

func ValidFileType(t string) bool {
	return t == FileTypeGPX || t == FileTypeKML
}
