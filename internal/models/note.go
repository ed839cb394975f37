// Package models defines the domain types for keepmd.
package models

import "time"

// Label is a user-assigned label on an exported note.
type Label struct {
	Name string `json:"name"`
}

// Attachment references a file shipped next to the export record.
type Attachment struct {
	FilePath string `json:"filePath"`
	MimeType string `json:"mimetype"`
}

// ListItem is one checklist entry.
type ListItem struct {
	Text      string `json:"text"`
	IsChecked bool   `json:"isChecked"`
}

// Annotation is a web link attached to a note.
type Annotation struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source,omitempty"`
}

// RawNoteRecord is one exported note as read from its JSON file.
// The timestamp fields are pointers so a missing value can be told apart
// from the epoch.
type RawNoteRecord struct {
	SourcePath string `json:"-"`
	ExportFile string `json:"-"`

	CreatedTimestampUsec    *int64       `json:"createdTimestampUsec"`
	UserEditedTimestampUsec *int64       `json:"userEditedTimestampUsec"`
	Title                   string       `json:"title"`
	TextContent             string       `json:"textContent,omitempty"`
	IsTrashed               bool         `json:"isTrashed"`
	IsPinned                bool         `json:"isPinned"`
	IsArchived              bool         `json:"isArchived"`
	Color                   string       `json:"color,omitempty"`
	Labels                  []Label      `json:"labels,omitempty"`
	Attachments             []Attachment `json:"attachments,omitempty"`
	ListContent             []ListItem   `json:"listContent,omitempty"`
	Annotations             []Annotation `json:"annotations,omitempty"`
}

// HasAttachments reports whether the record carries an attachments list.
func (r RawNoteRecord) HasAttachments() bool {
	return r.Attachments != nil
}

// NormalizedNote is a record after date derivation, tagging, title fallback,
// and attachment relocation. NotePath is empty until the note is rendered.
type NormalizedNote struct {
	Record    RawNoteRecord `json:"-"`
	CreatedAt time.Time     `json:"created_at"`
	EditedAt  time.Time     `json:"edited_at"`
	Title     string        `json:"title"`
	Tags      []string      `json:"tags"`
	Images    []string      `json:"images,omitempty"`
	Assets    []string      `json:"assets,omitempty"`
	NotePath  string        `json:"note_path,omitempty"`
}

// CreatedUsec returns the creation timestamp in microseconds.
func (n NormalizedNote) CreatedUsec() int64 {
	if n.Record.CreatedTimestampUsec == nil {
		return n.CreatedAt.UnixMicro()
	}
	return *n.Record.CreatedTimestampUsec
}

// Brief projects the note onto the fields the tag index needs.
func (n NormalizedNote) Brief() BriefNote {
	tags := make([]string, len(n.Tags))
	copy(tags, n.Tags)
	return BriefNote{
		CreatedTimestampUsec: n.CreatedUsec(),
		Title:                n.Title,
		Tags:                 tags,
		NotePath:             n.NotePath,
	}
}

// BriefNote is the projection of a rendered note used to build the tag index.
type BriefNote struct {
	CreatedTimestampUsec int64    `json:"createdTimestampUsec"`
	Title                string   `json:"title"`
	Tags                 []string `json:"tags"`
	NotePath             string   `json:"note_path"`
}

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
