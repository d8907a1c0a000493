package receipt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/fuel-receipts/internal/scanning"
)

// maxUploadSize is the largest receipt image accepted
const maxUploadSize = 10 << 20

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON writes v as a JSON response with the given status
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body with a message suitable for display
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readUpload reads and checks the "file" form field. It writes the error response
// itself and returns false when the upload is rejected.
func readUpload(w http.ResponseWriter, r *http.Request) (*Upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+(1<<20))
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "File is too large. Maximum size is 10MB.")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "Error parsing form")
		return nil, false
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeError(w, http.StatusBadRequest, "No file was selected. Please choose a receipt image to upload.")
		return nil, false
	}
	defer f.Close()

	if header.Size > maxUploadSize {
		writeError(w, http.StatusRequestEntityTooLarge, "File is too large. Maximum size is 10MB.")
		return nil, false
	}

	contentType := detectContentType(header.Header.Get("Content-Type"), header.Filename)
	if !strings.HasPrefix(contentType, "image/") && contentType != "application/pdf" {
		writeError(w, http.StatusUnsupportedMediaType, "Please upload an image of the receipt.")
		return nil, false
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return nil, false
	}

	return &Upload{
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
		VehicleID:   strings.TrimSpace(r.FormValue("vehicle_id")),
		DriverID:    strings.TrimSpace(r.FormValue("driver_id")),
		CardID:      strings.TrimSpace(r.FormValue("card_id")),
	}, true
}

// detectContentType falls back to the file extension when the part has no type
func detectContentType(contentType string, filename string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
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
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	case ".pdf":
		return "application/pdf"
	}
	return "application/octet-stream"
}

// writeProcessingError maps pipeline errors to responses
func writeProcessingError(w http.ResponseWriter, err error) {
	var extractionErr *ExtractionError
	switch {
	case errors.Is(err, scanning.ErrMissingAPIKey):
		writeError(w, http.StatusServiceUnavailable, "Receipt scanning is not configured: OCR API key missing.")
	case errors.Is(err, scanning.ErrEncodeImage):
		writeError(w, http.StatusBadRequest, "The image could not be read. Please retake the photo.")
	case errors.As(err, &extractionErr):
		writeError(w, http.StatusUnprocessableEntity, extractionErr.Message)
	case errors.Is(err, ErrUnusableReceipt):
		writeError(w, http.StatusUnprocessableEntity, "Could not read an amount from the receipt. Please retake the photo.")
	default:
		writeError(w, http.StatusInternalServerError, "Failed to process receipt. Please try again.")
	}
}

// handleScanReceipt runs extraction and returns the preview without storing it
func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	upload, ok := readUpload(w, r)
	if !ok {
		return
	}

	scan, err := s.service.ScanReceipt(r.Context(), upload.Data, upload.ContentType)
	if err != nil {
		slog.Error("Error scanning receipt", "filename", upload.Filename, "error", err)
		writeProcessingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, scan)
}

// handleCreateTransaction scans a receipt and records the fuel transaction
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	upload, ok := readUpload(w, r)
	if !ok {
		return
	}

	t, err := s.service.ProcessReceipt(r.Context(), *upload)
	if err != nil {
		slog.Error("Error processing receipt", "filename", upload.Filename, "error", err)
		writeProcessingError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, t)
}

// handleListTransactions returns transactions, filtered by ?status= when given
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	status := Status(r.URL.Query().Get("status"))
	if status != "" && status != StatusCompleted && status != StatusManual {
		writeError(w, http.StatusBadRequest, "status must be completed or manual")
		return
	}

	transactions, err := s.service.ListTransactions(r.Context(), status)
	if err != nil {
		slog.Error("Error listing transactions", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, transactions)
}

// handleGetTransaction returns a single transaction
func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.service.GetTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		writeLookupError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// handleCorrectTransaction applies reviewer corrections to the extracted fields
func (s *Server) handleCorrectTransaction(w http.ResponseWriter, r *http.Request) {
	var corrections scanning.Fields
	if err := json.NewDecoder(r.Body).Decode(&corrections); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	t, err := s.service.CorrectTransaction(r.Context(), r.PathValue("id"), corrections)
	if err != nil {
		slog.Error("Error correcting transaction", "id", r.PathValue("id"), "error", err)
		writeLookupError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// handleDeleteTransaction deletes a transaction and its receipt image
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteTransaction(r.Context(), r.PathValue("id")); err != nil {
		slog.Error("Error deleting transaction", "id", r.PathValue("id"), "error", err)
		writeLookupError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleGetReceiptFile returns the receipt image of a transaction
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetReceiptFile(r.Context(), r.PathValue("id"))
	if err != nil {
		writeLookupError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleGetFile serves a stored receipt image by storage key
func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.GetFile(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Write(data)
}

func writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "Transaction not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
