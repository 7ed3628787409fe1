// Package importer bulk-loads transcript files from a directory into the
// document store, optionally indexing each one as it lands.
package importer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/claudex/internal/llm"
	"github.com/MikeSquared-Agency/claudex/internal/progress"
	"github.com/MikeSquared-Agency/claudex/internal/store"
)

// Extensions picked up by discovery. ".jsonl" is read as a Claude Code
// session log; the others are stored verbatim.
var Extensions = []string{".txt", ".md", ".json", ".jsonl"}

type Config struct {
	Dir       string
	StatePath string
	Since     time.Time // skip files modified before this, when set
	DryRun    bool
	Index     bool
}

// Creator stores new documents.
type Creator interface {
	CreateDocument(ctx context.Context, title, content string) (store.Document, error)
}

// Indexer indexes one stored document.
type Indexer interface {
	Index(ctx context.Context, documentID uuid.UUID, reporter progress.Reporter) error
}

type Summary struct {
	Discovered int `json:"discovered"`
	Imported   int `json:"imported"`
	Skipped    int `json:"skipped"`
	Indexed    int `json:"indexed"`
	Failed     int `json:"failed"`
}

type Importer struct {
	cfg     Config
	repo    Creator
	indexer Indexer
	logger  *slog.Logger
}

// New builds an importer. ix may be nil when cfg.Index is false.
func New(cfg Config, repo Creator, ix Indexer, logger *slog.Logger) *Importer {
	if cfg.StatePath == "" {
		cfg.StatePath = DefaultStatePath
	}
	return &Importer{cfg: cfg, repo: repo, indexer: ix, logger: logger}
}

// Run imports every new or changed file under the configured directory.
// A missing API credential during indexing stops the run; other per-file
// failures are recorded in the state and skipped.
func (im *Importer) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	state, err := LoadState(im.cfg.StatePath)
	if err != nil {
		return sum, fmt.Errorf("load state: %w", err)
	}

	files, err := im.discover()
	if err != nil {
		return sum, fmt.Errorf("discover files: %w", err)
	}
	sum.Discovered = len(files)
	im.logger.Info("files discovered", "dir", im.cfg.Dir, "files", len(files), "dry_run", im.cfg.DryRun)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			im.logger.Info("import interrupted, saving state")
			_ = state.Save()
			return sum, err
		}

		title, content, err := readTranscript(path)
		if err != nil {
			im.logger.Warn("failed to read transcript", "path", path, "error", err)
			state.AddError(fmt.Sprintf("read %s: %v", path, err))
			sum.Failed++
			continue
		}
		if strings.TrimSpace(content) == "" {
			sum.Skipped++
			continue
		}

		hash := contentHash(content)
		if state.Seen(path, hash) {
			sum.Skipped++
			continue
		}

		if im.cfg.DryRun {
			im.logger.Info("would import", "path", path, "title", title, "bytes", len(content))
			sum.Imported++
			continue
		}

		doc, err := im.repo.CreateDocument(ctx, title, content)
		if err != nil {
			im.logger.Error("failed to store document", "path", path, "error", err)
			state.AddError(fmt.Sprintf("store %s: %v", path, err))
			sum.Failed++
			continue
		}
		sum.Imported++
		im.logger.Info("document imported", "path", path, "document_id", doc.ID)

		state.Mark(path, hash)
		_ = state.Save()

		if im.cfg.Index && im.indexer != nil {
			if err := im.indexer.Index(ctx, doc.ID, nil); err != nil {
				if llm.IsMissingCredential(err) {
					_ = state.Save()
					return sum, err
				}
				im.logger.Warn("index failed", "path", path, "document_id", doc.ID, "error", err)
				state.AddError(fmt.Sprintf("index %s: %v", path, err))
				sum.Failed++
				continue
			}
			sum.Indexed++
		}
	}

	if !im.cfg.DryRun {
		if err := state.Save(); err != nil {
			return sum, fmt.Errorf("save state: %w", err)
		}
	}
	return sum, nil
}

func (im *Importer) discover() ([]string, error) {
	var files []string
	err := filepath.WalkDir(im.cfg.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != im.cfg.Dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !hasExtension(path) {
			return nil
		}
		if !im.cfg.Since.IsZero() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			if info.ModTime().Before(im.cfg.Since) {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	sort.Strings(files)
	return files, err
}

// readTranscript returns the title and document content for a file.
func readTranscript(path string) (string, string, error) {
	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		msgs, err := ReadClaudeCodeSession(path)
		if err != nil {
			return "", "", err
		}
		exp := BuildExport(msgs)
		if len(exp.Sessions) == 0 {
			return "", "", nil
		}
		data, err := json.Marshal(exp)
		if err != nil {
			return "", "", fmt.Errorf("marshal export: %w", err)
		}
		return exp.Title, string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)), string(data), nil
}

func hasExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
