package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/keepmd/internal/noteservice"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 200
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// notePath extracts the note path from the URL (everything after /api/notes/).
// Supports encoded slashes (e.g. notes%2Fsoup.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func wantsHTML(r *http.Request) bool {
	return r.URL.Query().Get("format") == "html"
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List converted notes
//	@Tags			notes
//	@Produce		json
//	@Param			folder	query		string	false	"Restrict to a folder"
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListNotes(r.Context(), r.URL.Query().Get("folder"))
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: len(items)})
}

// GetNote handles GET /api/notes/*.
//
//	@Summary		Get a converted note by path
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Param			format	query		string	false	"Add rendered HTML"	Enums(html)
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	note, err := h.svc.GetNote(r.Context(), path, wantsHTML(r))
	if err != nil {
		writeError(w, "get note", err, slog.String("path", path))
		return
	}
	w.Header().Set("ETag", `"`+note.Checksum+`"`)
	writeJSON(w, http.StatusOK, note)
}

// TOC handles GET /api/toc.
//
//	@Summary		Get the tag table of contents
//	@Tags			toc
//	@Produce		json
//	@Param			format	query		string	false	"Add rendered HTML"	Enums(html)
//	@Success		200		{object}	TOCDocument
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/toc [get]
func (h *Handler) TOC(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.TOC(r.Context(), wantsHTML(r))
	if err != nil {
		writeError(w, "get toc", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// ListTags handles GET /api/tags.
//
//	@Summary		List tags with note counts
//	@Tags			tags
//	@Produce		json
//	@Success		200		{object}	TagListResponse
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.ListTags(r.Context())
	if err != nil {
		writeError(w, "list tags", err)
		return
	}
	writeJSON(w, http.StatusOK, TagListResponse{Tags: tags})
}

// NotesByTag handles GET /api/tags/{tag}.
//
//	@Summary		List the notes filed under a tag
//	@Tags			tags
//	@Produce		json
//	@Param			tag		path		string	true	"Tag name"
//	@Success		200		{object}	TagNotesResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tags/{tag} [get]
func (h *Handler) NotesByTag(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	if decoded, err := url.PathUnescape(tag); err == nil {
		tag = decoded
	}
	notes, err := h.svc.NotesByTag(r.Context(), tag)
	if err != nil {
		writeError(w, "notes by tag", err, slog.String("tag", tag))
		return
	}
	writeJSON(w, http.StatusOK, TagNotesResponse{Tag: tag, Notes: notes})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across converted notes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err, slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
