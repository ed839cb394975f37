package api

import (
	"github.com/starford/keepmd/internal/index"
	"github.com/starford/keepmd/internal/noteservice"
)

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight item in a list response (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// TOCDocument is the tag TOC response type (aliased from the domain layer).
type TOCDocument = noteservice.TOCDocument

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// TagListResponse wraps the catalogued tags.
type TagListResponse struct {
	Tags []index.TagCount `json:"tags" validate:"required"`
}

// TagNotesResponse lists the notes filed under one tag.
type TagNotesResponse struct {
	Tag   string          `json:"tag" example:"recipe-ideas" validate:"required"`
	Notes []index.NoteRow `json:"notes" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}
