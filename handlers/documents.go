package handlers

import (
	"io"
	"log"
	"net/http"
)

// maxUploadBytes bounds document uploads.
const maxUploadBytes = 25 << 20

type DocumentHandler struct{}

func NewDocumentHandler() *DocumentHandler {
	return &DocumentHandler{}
}

func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Documents())
}

// Upload accepts a multipart form with the file in the "file" field
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, "A file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	doc, err := sess.UploadDocument(r.Context(), header.Filename, contentType, data)
	if err != nil {
		fail(w, "upload document", err)
		return
	}

	log.Printf("✅ Document uploaded by %s: %s (%d bytes)", sess.User().Username, doc.Name, doc.FileSize)
	writeJSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req IDRequest
	if !decode(w, r, &req) {
		return
	}

	if err := sess.DeleteDocument(r.Context(), req.ID); err != nil {
		fail(w, "delete document", err)
		return
	}

	log.Printf("✅ Document %s deleted by %s", req.ID, sess.User().Username)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Document deleted"})
}
