// Package loader ingests the knowledge-base directory into the vector
// store at startup.
package loader

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"portfolio/logger"
	"portfolio/store"
	"portfolio/types"
)

// textExtensions are the recognized knowledge-base file types.
var textExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

type Ingestor struct {
	vectors store.VectorStorer
}

func NewIngestor(vectors store.VectorStorer) *Ingestor {
	return &Ingestor{vectors: vectors}
}

// DocumentID is a deterministic hash over filename and content. Identical
// (filename, content) pairs always hash to the same id, which is what
// makes re-ingestion idempotent. The md5 hex format is a compatibility
// contract with already-populated collections.
func DocumentID(filename, content string) string {
	sum := md5.Sum([]byte(filename + content))
	return hex.EncodeToString(sum[:])
}

// Run walks dir recursively, loads every non-empty .txt/.md file and adds
// the ones not yet present to the collection in a single batch. Ids
// already in the collection are skipped, so the collection only ever
// grows. Any error aborts the run without a partial batch.
func (i *Ingestor) Run(ctx context.Context, dir, collection string) error {
	var candidates []types.KnowledgeDocument

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !textExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("error reading %s: %w", path, err)
		}
		content := strings.TrimSpace(string(raw))
		if content == "" {
			return nil
		}

		candidates = append(candidates, types.KnowledgeDocument{
			ID:         DocumentID(d.Name(), content),
			Content:    content,
			SourcePath: path,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("error scanning knowledge base: %w", err)
	}
	if len(candidates) == 0 {
		logger.Infof("no knowledge-base documents found under %s", dir)
		return nil
	}

	newDocs, err := i.filterExisting(ctx, collection, candidates)
	if err != nil {
		return err
	}
	if len(newDocs) == 0 {
		logger.Infof("knowledge base unchanged, %d documents already ingested", len(candidates))
		return nil
	}

	if err := i.vectors.AddDocuments(ctx, collection, newDocs); err != nil {
		return fmt.Errorf("error adding documents to collection %q: %w", collection, err)
	}
	logger.Infof("ingested %d new documents into collection %q", len(newDocs), collection)
	return nil
}

// filterExisting drops candidates whose ids are already in the collection.
func (i *Ingestor) filterExisting(ctx context.Context, collection string, candidates []types.KnowledgeDocument) ([]types.KnowledgeDocument, error) {
	ids := make([]string, len(candidates))
	for n, doc := range candidates {
		ids[n] = doc.ID
	}

	existing, err := i.vectors.GetByFilter(ctx, collection, store.DocFilter{IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("error checking existing documents: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, doc := range existing {
		seen[doc.ID] = true
	}

	var newDocs []types.KnowledgeDocument
	for _, doc := range candidates {
		if !seen[doc.ID] {
			newDocs = append(newDocs, doc)
		}
	}
	return newDocs, nil
}
