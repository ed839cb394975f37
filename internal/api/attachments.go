package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// AttachmentHandler serves files relocated next to the converted notes, one
// handler per attachment folder (images, assets).
type AttachmentHandler struct {
	root string
	dir  string
}

// NewAttachmentHandler creates a handler for root/dir.
func NewAttachmentHandler(root, dir string) *AttachmentHandler {
	return &AttachmentHandler{root: root, dir: dir}
}

func (h *AttachmentHandler) dirPath() string {
	return filepath.Join(h.root, h.dir)
}

// safeName validates that the filename is a plain name (no path separators,
// no traversal) and returns the absolute path under the folder.
func (h *AttachmentHandler) safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	abs := filepath.Join(h.dirPath(), cleaned)
	if !strings.HasPrefix(abs, h.dirPath()+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes %s directory", h.dir)
	}
	return abs, nil
}

// Mount registers GET /<dir>/{filename} on r.
func (h *AttachmentHandler) Mount(r chi.Router) {
	r.Get("/"+h.dir+"/{filename}", h.ServeFile)
}

// ServeFile handles GET /<dir>/{filename}.
func (h *AttachmentHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	abs, err := h.safeName(chi.URLParam(r, "filename"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}
