package expense

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// maxUploadSize bounds receipt uploads (high-resolution phone photos)
const maxUploadSize = int64(50 << 20)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON writes v with the given status
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnreadableReceipt):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// requireUser reads the user query parameter
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	if user == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return "", false
	}
	return user, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRegisterUser creates or updates a user
func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	user, err := s.service.RegisterUser(req.ID, req.DisplayName)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleListExpenses returns the newest expenses of a user
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative number")
			return
		}
		limit = n
	}

	expenses, err := s.service.RecentExpenses(user, limit)
	if err != nil {
		slog.Error("Error listing expenses", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, expenses)
}

// detectContentType falls back to the file extension when the part has no type
func detectContentType(header string, filename string) string {
	contentType := strings.ToLower(strings.TrimSpace(header))
	if contentType != "" {
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
	return "application/octet-stream"
}

// handleUploadReceipt handles receipt upload
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		writeError(w, http.StatusBadRequest, errorMsg)
		return
	}

	user := strings.TrimSpace(r.FormValue("user"))
	if user == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		writeError(w, http.StatusBadRequest, errorMsg)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}

	contentType := detectContentType(header.Header.Get("Content-Type"), header.Filename)
	expense, err := s.service.ProcessReceipt(r.Context(), user, header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error processing receipt", "filename", header.Filename, "error", err)
		message := err.Error()
		if errors.Is(err, ErrUnreadableReceipt) {
			message = GenericFailureMessage
		}
		writeError(w, statusFor(err), message)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"expense": expense,
		"message": FormatExpense(expense),
	})
}

// handleGetExpense returns a single expense
func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	expense, err := s.service.GetExpense(user, r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), "Expense not found")
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

// handleGetExpenseFile returns the original receipt image
func (s *Server) handleGetExpenseFile(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	data, contentType, err := s.service.GetExpenseFile(user, r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), "File not found")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteExpense deletes an expense
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := s.service.DeleteExpense(user, r.PathValue("id")); err != nil {
		slog.Error("Error deleting expense", "id", r.PathValue("id"), "error", err)
		writeError(w, statusFor(err), "Error deleting expense")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDailySummary returns the summary for ?date=YYYY-MM-DD, default today
func (s *Server) handleDailySummary(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	day := s.service.timeSource.Now()
	if v := r.URL.Query().Get("date"); v != "" {
		d, err := time.Parse(dateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = d
	}

	summary, err := s.service.DailySummary(user, day)
	if err != nil {
		slog.Error("Error building daily summary", "error", err)
		writeError(w, statusFor(err), "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"summary": summary,
		"message": FormatDailySummary(summary),
	})
}

// handleMonthlySummary returns the summary for ?year=&month=, default this month
func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	now := s.service.timeSource.Now()
	year, month := now.Year(), int(now.Month())
	var err error
	if v := r.URL.Query().Get("year"); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "year must be a number")
			return
		}
	}
	if v := r.URL.Query().Get("month"); v != "" {
		if month, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "month must be a number")
			return
		}
	}

	summary, err := s.service.MonthlySummary(user, year, time.Month(month))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"summary": summary,
		"message": FormatMonthlySummary(summary),
	})
}

// handleExportCSV streams the user's expenses as CSV
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="expenses-%s.csv"`, sanitizeFilename(user)))
	if err := s.service.ExportCSV(w, user); err != nil {
		slog.Error("Error exporting expenses", "user", user, "error", err)
	}
}
