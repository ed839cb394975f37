// Package stash pushes converted notes to a CouchDB database through the
// _bulk_docs endpoint. A failed push is dumped to a local JSON file.
package stash

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/keepmd/internal/apperr"
	"github.com/starford/keepmd/internal/models"
	"github.com/starford/keepmd/internal/storage"
)

// RetryBaseDelay is the first backoff wait; it doubles on every retry.
// Tests override it.
var RetryBaseDelay = time.Second

const (
	defaultMaxRetries = 3
	defaultTimeout    = 30 * time.Second
	dumpLayout        = "2006-01-02_150405"
)

// namespace seeds the document IDs so the same export file always maps to
// the same CouchDB _id.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("keepmd:note"))

// Config configures the client.
type Config struct {
	Address    string
	Database   string
	Username   string
	Password   string
	Timeout    time.Duration
	MaxRetries int
	DumpDir    string
}

// Document is one note as stored in CouchDB.
type Document struct {
	ID                      string   `json:"_id"`
	ExportFile              string   `json:"keep_export_file"`
	Title                   string   `json:"title"`
	Tags                    []string `json:"tags"`
	CreatedTimestampUsec    int64    `json:"createdTimestampUsec"`
	UserEditedTimestampUsec int64    `json:"userEditedTimestampUsec"`
	TextContent             string   `json:"textContent,omitempty"`
	NotePath                string   `json:"note_path"`
	Images                  []string `json:"images,omitempty"`
	Assets                  []string `json:"assets,omitempty"`
}

// DocumentID returns the deterministic _id for an export file name.
func DocumentID(exportFile string) string {
	return uuid.NewSHA1(namespace, []byte(exportFile)).String()
}

// NewDocument projects a rendered note onto a Document.
func NewDocument(n models.NormalizedNote) Document {
	edited := n.EditedAt.UnixMicro()
	if n.Record.UserEditedTimestampUsec != nil {
		edited = *n.Record.UserEditedTimestampUsec
	}
	return Document{
		ID:                      DocumentID(n.Record.ExportFile),
		ExportFile:              n.Record.ExportFile,
		Title:                   n.Title,
		Tags:                    append([]string(nil), n.Tags...),
		CreatedTimestampUsec:    n.CreatedUsec(),
		UserEditedTimestampUsec: edited,
		TextContent:             n.Record.TextContent,
		NotePath:                n.NotePath,
		Images:                  n.Images,
		Assets:                  n.Assets,
	}
}

// Client talks to one CouchDB database.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Client. A nil httpClient gets one with cfg.Timeout.
func New(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger, now: time.Now}
}

// Endpoint returns the _bulk_docs URL.
func (c *Client) Endpoint() string {
	return strings.TrimRight(c.cfg.Address, "/") + "/" + c.cfg.Database + "/_bulk_docs"
}

// Bulk stores docs in one request. Anything other than 201 Created, after
// retries, dumps the batch to DumpDir and returns an error wrapping
// apperr.ErrPersistenceFailure.
func (c *Client) Bulk(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	payload, err := json.Marshal(map[string][]Document{"docs": docs})
	if err != nil {
		return fmt.Errorf("stash: marshal: %w", err)
	}

	status, err := c.post(ctx, payload)
	if err == nil && status == http.StatusCreated {
		c.logger.Info("stash: documents stored", slog.Int("count", len(docs)))
		return nil
	}
	if err == nil {
		err = fmt.Errorf("unexpected status %d", status)
	}
	c.logger.Warn("stash: bulk insert failed", slog.String("error", err.Error()))

	dump, dumpErr := c.dump(docs)
	if dumpErr != nil {
		return fmt.Errorf("%w: %v (dump failed: %v)", apperr.ErrPersistenceFailure, err, dumpErr)
	}
	c.logger.Info("stash: batch dumped", slog.String("path", dump))
	return fmt.Errorf("%w: %v (batch dumped to %s)", apperr.ErrPersistenceFailure, err, dump)
}

// post sends payload, retrying 429 and 5xx responses with exponential backoff.
// It returns the final status code.
func (c *Client) post(ctx context.Context, payload []byte) (int, error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(payload))
		if err != nil {
			return 0, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)

		resp, err := c.http.Do(req)
		if err != nil {
			return 0, err
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		if !retryable(resp.StatusCode) || attempt >= c.cfg.MaxRetries {
			if resp.StatusCode != http.StatusCreated {
				c.logger.Debug("stash: response", slog.Int("status", resp.StatusCode), slog.String("body", string(body)))
			}
			return resp.StatusCode, nil
		}

		backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
		c.logger.Debug("stash: retrying",
			slog.Int("status", resp.StatusCode),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func (c *Client) dump(docs []Document) (string, error) {
	dir := c.cfg.DumpDir
	if dir == "" {
		dir = os.TempDir()
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return "", err
	}
	p := filepath.Join(dir, c.now().Format(dumpLayout)+".json")
	if err := storage.WriteFileAtomic(p, data); err != nil {
		return "", err
	}
	return p, nil
}
