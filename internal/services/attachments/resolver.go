package attachments

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reclaim/internal/common"
	"github.com/ternarybob/reclaim/internal/models"
)

// Resolver stages claim documents on local disk for the upload step. Every
// per-document problem is logged and skipped; a claim with zero usable
// documents still runs, it just uploads nothing.
type Resolver struct {
	cfg    common.AttachmentsConfig
	client *http.Client
	log    arbor.ILogger
}

// NewResolver creates a document resolver
func NewResolver(cfg *common.Config, log arbor.ILogger) *Resolver {
	return &Resolver{
		cfg:    cfg.Attachments,
		client: &http.Client{Timeout: cfg.AttachmentFetchTimeout()},
		log:    log,
	}
}

// Resolve materializes documents into the job's staging directory and
// returns the paths it produced, in request order.
func (r *Resolver) Resolve(ctx context.Context, jobID string, docs []models.Document) []string {
	if len(docs) == 0 {
		return nil
	}

	dir := filepath.Join(r.cfg.Dir, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.log.Warn().Err(err).Str("job_id", jobID).Msg("Failed to create attachment directory")
		return nil
	}

	var paths []string
	var totalSize int64

	for _, doc := range docs {
		ext := strings.ToLower(filepath.Ext(doc.Filename))
		if !r.extAllowed(ext) {
			r.log.Warn().Str("job_id", jobID).Str("filename", doc.Filename).Str("ext", ext).Msg("Skipping document with unsupported extension")
			continue
		}

		content, err := r.fetch(ctx, doc)
		if err != nil {
			r.log.Warn().Err(err).Str("job_id", jobID).Str("filename", doc.Filename).Msg("Skipping document")
			continue
		}

		size := int64(len(content))
		if totalSize+size > r.cfg.MaxTotalSize {
			r.log.Warn().
				Str("job_id", jobID).
				Str("filename", doc.Filename).
				Int64("size", size).
				Int64("limit", r.cfg.MaxTotalSize).
				Msg("Skipping document: total size limit exceeded")
			continue
		}

		// Strip any path components a caller smuggled into the filename.
		path := filepath.Join(dir, filepath.Base(doc.Filename))
		if err := os.WriteFile(path, content, 0o644); err != nil {
			r.log.Warn().Err(err).Str("job_id", jobID).Str("filename", doc.Filename).Msg("Failed to write document")
			continue
		}

		totalSize += size
		paths = append(paths, path)
		r.log.Info().Str("job_id", jobID).Str("filename", doc.Filename).Int64("size", size).Msg("Document staged")
	}

	return paths
}

// Cleanup removes the job's staging directory
func (r *Resolver) Cleanup(jobID string) {
	dir := filepath.Join(r.cfg.Dir, jobID)
	if err := os.RemoveAll(dir); err != nil {
		r.log.Warn().Err(err).Str("job_id", jobID).Msg("Failed to remove attachment directory")
	}
}

func (r *Resolver) extAllowed(ext string) bool {
	for _, allowed := range r.cfg.AllowedExts {
		if ext == allowed {
			return true
		}
	}
	return false
}

// fetch returns the document bytes from inline base64 or a remote URL.
// Inline content wins when both are present.
func (r *Resolver) fetch(ctx context.Context, doc models.Document) ([]byte, error) {
	if doc.Base64 != "" {
		content, err := base64.StdEncoding.DecodeString(doc.Base64)
		if err != nil {
			return nil, fmt.Errorf("decode base64: %w", err)
		}
		return content, nil
	}

	if doc.URL == "" {
		return nil, fmt.Errorf("document has neither content nor url")
	}
	if !strings.HasPrefix(doc.URL, "http://") && !strings.HasPrefix(doc.URL, "https://") {
		return nil, fmt.Errorf("unsupported url scheme: %s", doc.URL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, doc.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	// Read one byte past the cap so an oversized body is detected without
	// buffering all of it.
	content, err := io.ReadAll(io.LimitReader(resp.Body, r.cfg.MaxTotalSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(content)) > r.cfg.MaxTotalSize {
		return nil, fmt.Errorf("document exceeds %d byte limit", r.cfg.MaxTotalSize)
	}
	return content, nil
}
