package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/receipt-keeper/internal/metrics"
	"github.com/zombor/receipt-keeper/internal/models"
	"github.com/zombor/receipt-keeper/internal/receipt"
	"github.com/zombor/receipt-keeper/internal/scanning"
)

const tooLarge = "File is too large. Maximum size is 50MB. Please compress or resize your image."

// handleScanReceipt reads an uploaded image and returns an unsaved draft.
func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Warn("Error parsing multipart form", "error", err)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": tooLarge})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Error parsing form"})
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "No file was selected. Please choose a file to upload.",
		})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Error reading file. Please try again.",
		})
		return
	}

	contentType := uploadContentType(header.Header.Get("Content-Type"), header.Filename, data)

	draft, err := s.Receipts.ScanReceipt(r.Context(), owner(r), data, contentType)
	if s.Metrics != nil {
		label := "error"
		if errors.Is(err, scanning.ErrIncompleteScan) {
			label = "incomplete"
		}
		s.Metrics.Scans.WithLabelValues(metrics.Result(err, label)).Inc()
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, draft)
}

// uploadContentType trusts the part header, then the file extension, then
// the bytes.
func uploadContentType(header, filename string, data []byte) string {
	contentType := strings.ToLower(strings.TrimSpace(header))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	return http.DetectContentType(data)
}

func (s *Server) handleSaveReceipt(w http.ResponseWriter, r *http.Request) {
	var draft models.Receipt
	if !decodeJSON(w, r, &draft) {
		return
	}

	saved, err := s.Receipts.SaveReceipt(r.Context(), owner(r), &draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if s.Metrics != nil {
		s.Metrics.ReceiptsSaved.Inc()
	}

	writeJSON(w, http.StatusCreated, withoutImage(saved))
}

// handleListReceipts returns the signed-in user's receipts, newest first
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.Receipts.ListReceipts(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	list := make([]*models.Receipt, 0, len(receipts))
	for _, rec := range receipts {
		list = append(list, withoutImage(rec))
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleListStores(w http.ResponseWriter, r *http.Request) {
	groups, err := s.Receipts.GroupByStore(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]receipt.StoreGroup, 0, len(groups))
	for _, g := range groups {
		group := *g
		group.Receipts = make([]*models.Receipt, len(g.Receipts))
		for i, rec := range g.Receipts {
			group.Receipts[i] = withoutImage(rec)
		}
		out = append(out, group)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetReceiptImage returns the stored image for a receipt
func (s *Server) handleGetReceiptImage(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.Receipts.GetReceiptImage(r.Context(), owner(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.Write(data)
}

// handleDeleteReceipt deletes a receipt
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	if err := s.Receipts.DeleteReceipt(r.Context(), owner(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	if s.Metrics != nil {
		s.Metrics.ReceiptsDeleted.Inc()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Health.Stats(r.Context())
	if err != nil {
		slog.Error("Health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"schema_version": stats.SchemaVersion,
		"users":          stats.Users,
		"receipts":       stats.Receipts,
	})
}

// withoutImage copies r without its image bytes; images are served from
// their own route.
func withoutImage(r *models.Receipt) *models.Receipt {
	c := *r
	c.Image = nil
	return &c
}
