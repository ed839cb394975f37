package parser

import (
	"encoding/json"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/keepmd/internal/apperr"
	"github.com/starford/keepmd/internal/models"
)

// ParseRecord decodes one export record. A record that is not valid JSON,
// carries a non-integer timestamp, or lacks a required timestamp yields an
// apperr.ErrMalformedRecord wrapped with the source path.
func ParseRecord(data []byte, sourcePath string) (*models.RawNoteRecord, error) {
	var rec models.RawNoteRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, apperr.Record(sourcePath, apperr.Malformed("decode: %v", err))
	}
	if err := validateRecord(&rec); err != nil {
		return nil, apperr.Record(sourcePath, apperr.Malformed("%v", err))
	}
	rec.SourcePath = sourcePath
	rec.ExportFile = filepath.Base(sourcePath)
	return &rec, nil
}

func validateRecord(rec *models.RawNoteRecord) error {
	return validation.ValidateStruct(rec,
		validation.Field(&rec.CreatedTimestampUsec, validation.NotNil),
		validation.Field(&rec.UserEditedTimestampUsec, validation.NotNil),
		validation.Field(&rec.Attachments, validation.Each(validation.By(validateAttachment))),
	)
}

func validateAttachment(value interface{}) error {
	a, ok := value.(models.Attachment)
	if !ok {
		return nil
	}
	return validation.ValidateStruct(&a,
		validation.Field(&a.FilePath, validation.Required),
	)
}
