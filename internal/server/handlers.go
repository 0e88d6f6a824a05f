package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zombor/expense-tracker/internal/expense"
	"github.com/zombor/expense-tracker/internal/remote"
)

const (
	// maxUploadSize bounds multipart bodies, sized for high-resolution phone photos
	maxUploadSize = int64(50 << 20)

	defaultTrendMonths = 6

	unavailableMessage = "The service is temporarily unavailable. Please try again in a moment."
)

// writeJSON writes v as a JSON response
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

// writeServiceError maps a service failure onto an HTTP response. Permanent
// remote errors carry the upstream message; transient ones that survived the
// retries get a generic notice.
func writeServiceError(w http.ResponseWriter, r *http.Request, action string, err error) {
	var validation expense.ValidationErrors
	if errors.As(err, &validation) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "Validation failed",
			"fields": validation,
		})
		return
	}

	if errors.Is(err, expense.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	if remote.IsRetryable(err) {
		slog.Error("Remote call failed after retries", "action", action, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusServiceUnavailable, unavailableMessage)
		return
	}

	if status, ok := remote.HTTPStatus(err); ok && status >= 400 && status < 500 {
		slog.Warn("Remote call rejected", "action", action, "status", status, "error", err)
		message := err.Error()
		var statusErr *remote.StatusError
		if errors.As(err, &statusErr) && statusErr.Message != "" {
			message = statusErr.Message
		}
		writeError(w, status, message)
		return
	}

	slog.Error("Request failed", "action", action, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

// decodeBody reads a JSON request body into v
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// contentTypeFor determines an upload's content type from its header or file extension
func contentTypeFor(header string, filename string) string {
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
	default:
		return "application/octet-stream"
	}
}

// readUpload reads the multipart "file" field of a request
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		writeError(w, http.StatusBadRequest, errorMsg)
		return nil, "", "", false
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		writeError(w, http.StatusBadRequest, errorMsg)
		return nil, "", "", false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return nil, "", "", false
	}

	return data, header.Filename, contentTypeFor(header.Header.Get("Content-Type"), header.Filename), true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListExpenses returns the caller's expenses, newest first
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.service.ListExpenses(r.Context(), userIDFrom(r))
	if err != nil {
		writeServiceError(w, r, "list expenses", err)
		return
	}

	// Ensure we always return an array, not nil
	if expenses == nil {
		expenses = []*expense.Expense{}
	}
	writeJSON(w, http.StatusOK, expenses)
}

// handleCreateExpense records a new expense
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var input expense.ExpenseInput
	if !decodeBody(w, r, &input) {
		return
	}

	created, err := s.service.AddExpense(r.Context(), userIDFrom(r), input)
	if err != nil {
		writeServiceError(w, r, "create expense", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleGetExpense returns a single expense
func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	found, err := s.service.GetExpense(r.Context(), userIDFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "get expense", err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// handleUpdateExpense replaces the editable fields of an expense
func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var input expense.ExpenseInput
	if !decodeBody(w, r, &input) {
		return
	}

	updated, err := s.service.UpdateExpense(r.Context(), userIDFrom(r), r.PathValue("id"), input)
	if err != nil {
		writeServiceError(w, r, "update expense", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteExpense deletes an expense and its receipt file
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteExpense(r.Context(), userIDFrom(r), r.PathValue("id")); err != nil {
		writeServiceError(w, r, "delete expense", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAttachReceipt uploads a receipt file for an expense
func (s *Server) handleAttachReceipt(w http.ResponseWriter, r *http.Request) {
	data, filename, contentType, ok := readUpload(w, r)
	if !ok {
		return
	}

	updated, err := s.service.AttachReceipt(r.Context(), userIDFrom(r), r.PathValue("id"), filename, data, contentType)
	if err != nil {
		writeServiceError(w, r, "attach receipt", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleGetReceiptFile returns the receipt file of an expense
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetReceiptFile(r.Context(), userIDFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "get receipt file", err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleListBudgets returns the caller's budgets with this month's spending
func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.service.ListBudgets(r.Context(), userIDFrom(r))
	if err != nil {
		writeServiceError(w, r, "list budgets", err)
		return
	}
	if budgets == nil {
		budgets = []*expense.Budget{}
	}
	writeJSON(w, http.StatusOK, budgets)
}

// handleSetBudget creates or replaces the monthly budget of a category
func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CategoryID string `json:"category_id"`
		Amount     int64  `json:"amount"`
		CurrencyID string `json:"currency_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	budget, err := s.service.SetBudget(r.Context(), userIDFrom(r), req.CategoryID, req.Amount, req.CurrencyID)
	if err != nil {
		writeServiceError(w, r, "set budget", err)
		return
	}
	writeJSON(w, http.StatusOK, budget)
}

// handleDeleteBudget deletes a budget
func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteBudget(r.Context(), userIDFrom(r), r.PathValue("id")); err != nil {
		writeServiceError(w, r, "delete budget", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.service.ListCategories(r.Context(), userIDFrom(r))
	if err != nil {
		writeServiceError(w, r, "list categories", err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	category, err := s.service.AddCategory(r.Context(), userIDFrom(r), req.Name, req.Color)
	if err != nil {
		writeServiceError(w, r, "create category", err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteCategory(r.Context(), userIDFrom(r), r.PathValue("id")); err != nil {
		writeServiceError(w, r, "delete category", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCurrencies(w http.ResponseWriter, r *http.Request) {
	currencies, err := s.service.ListCurrencies(r.Context())
	if err != nil {
		writeServiceError(w, r, "list currencies", err)
		return
	}
	writeJSON(w, http.StatusOK, currencies)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.service.GetProfile(r.Context(), userIDFrom(r))
	if err != nil {
		writeServiceError(w, r, "get profile", err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var input expense.ProfileInput
	if !decodeBody(w, r, &input) {
		return
	}

	profile, err := s.service.UpdateProfile(r.Context(), userIDFrom(r), input)
	if err != nil {
		writeServiceError(w, r, "update profile", err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// queryInt reads an integer query parameter, falling back to def when absent
func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, expense.ValidationErrors{{Field: name, Message: "must be a number"}}
	}
	return n, nil
}

// handleMonthSummary returns one month's totals, the current month by default
func (s *Server) handleMonthSummary(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	year, err := queryInt(r, "year", now.Year())
	if err != nil {
		writeServiceError(w, r, "month summary", err)
		return
	}
	month, err := queryInt(r, "month", int(now.Month()))
	if err != nil {
		writeServiceError(w, r, "month summary", err)
		return
	}

	summary, err := s.service.MonthSummary(r.Context(), userIDFrom(r), year, time.Month(month))
	if err != nil {
		writeServiceError(w, r, "month summary", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleBudgetStatuses(w http.ResponseWriter, r *http.Request) {
	overview, err := s.service.BudgetStatuses(r.Context(), userIDFrom(r))
	if err != nil {
		writeServiceError(w, r, "budget statuses", err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (s *Server) handleSpendingTrend(w http.ResponseWriter, r *http.Request) {
	months, err := queryInt(r, "months", defaultTrendMonths)
	if err != nil {
		writeServiceError(w, r, "spending trend", err)
		return
	}

	trend, err := s.service.SpendingTrend(r.Context(), userIDFrom(r), months)
	if err != nil {
		writeServiceError(w, r, "spending trend", err)
		return
	}
	writeJSON(w, http.StatusOK, trend)
}
