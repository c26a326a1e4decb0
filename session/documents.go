package session

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmonsif/aeroconnect/db"
	"github.com/mmonsif/aeroconnect/models"
	"github.com/mmonsif/aeroconnect/visibility"
)

func (s *Session) Documents() []models.DocFile {
	rows := s.mirror.Rows(models.TableDocuments)
	docs := make([]models.DocFile, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, db.DecodeDocument(r))
	}
	return docs
}

// UploadDocument stores the bytes first and the row second. If the row
// cannot be written the uploaded object is removed again.
func (s *Session) UploadDocument(ctx context.Context, name, contentType string, data []byte) (models.DocFile, error) {
	user, _ := s.actor()
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || len(data) == 0 {
		return models.DocFile{}, fmt.Errorf("file name and content are required: %w", ErrInvalid)
	}

	path := fmt.Sprintf("documents/%d-%s", time.Now().UnixMilli(), name)
	url, err := s.blobs.Upload(ctx, path, contentType, data)
	if err != nil {
		return models.DocFile{}, fmt.Errorf("failed to upload %s: %w", name, err)
	}

	docType := strings.ToUpper(strings.TrimPrefix(filepath.Ext(name), "."))
	if docType == "" {
		docType = contentType
	}
	doc := models.DocFile{
		ID:         uuid.NewString(),
		Name:       name,
		Type:       docType,
		UploadedBy: user.Name,
		FilePath:   path,
		FileURL:    url,
		FileSize:   int64(len(data)),
		CreatedAt:  time.Now().UTC(),
	}
	row, err := s.write(ctx, models.TableDocuments, db.Mutation{Op: models.OpInsert, Payload: db.DocumentRow(doc)})
	if err != nil {
		if rmErr := s.blobs.Remove(ctx, path); rmErr != nil {
			log.Printf("⚠️  Orphaned upload %s: %v", path, rmErr)
		}
		return models.DocFile{}, err
	}
	return db.DecodeDocument(row), nil
}

// DeleteDocument removes the row, then the stored bytes.
func (s *Session) DeleteDocument(ctx context.Context, id string) error {
	if !s.Engine().CanModerate() {
		return visibility.ErrForbidden
	}
	row, ok := s.mirror.Get(models.TableDocuments, id)
	if !ok {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	doc := db.DecodeDocument(row)

	if _, err := s.write(ctx, models.TableDocuments, db.Mutation{Op: models.OpDelete, ID: id}); err != nil {
		return err
	}
	if doc.FilePath != "" {
		if err := s.blobs.Remove(ctx, doc.FilePath); err != nil {
			log.Printf("⚠️  Failed to remove stored file %s: %v", doc.FilePath, err)
		}
	}
	return nil
}
