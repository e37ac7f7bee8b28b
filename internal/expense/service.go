package expense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/zombor/expense-scanner/internal/scanning"
)

// IDGenerator generates unique IDs for expenses
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// uuidGenerator generates random UUIDs
type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles user and expense operations
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with a UUID generator and the system clock
func NewService(db DB, scanner scanning.Scanner, storage Storage) *Service {
	return NewServiceWithDeps(db, scanner, storage, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	reFilenameUnsafe = regexp.MustCompile(`[^\p{L}\p{M}\p{N}\s\-_]`)
	reFilenameSpace  = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if reFilenameUnsafe.MatchString(strings.TrimPrefix(ext, ".")) {
		ext = ""
	}
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = reFilenameUnsafe.ReplaceAllString(base, "")
	base = reFilenameSpace.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	// Phone cameras produce very long names
	const maxRunes = 50
	if utf8.RuneCountInString(base) > maxRunes {
		base = string([]rune(base)[:maxRunes])
	}
	if base == "" {
		base = "receipt"
	}
	return base + ext
}

// RegisterUser creates a user or updates its display name
func (s *Service) RegisterUser(id, displayName string) (*User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("user id is required: %w", ErrInvalidInput)
	}
	now := s.timeSource.Now()

	user, err := s.db.GetUser(id)
	switch {
	case errors.Is(err, ErrNotFound):
		user = &User{ID: id, CreatedAt: now}
	case err != nil:
		return nil, fmt.Errorf("getting user: %w", err)
	}
	if displayName = strings.TrimSpace(displayName); displayName != "" {
		user.DisplayName = displayName
	}
	user.UpdatedAt = now

	if err := s.db.SaveUser(user); err != nil {
		return nil, fmt.Errorf("saving user: %w", err)
	}
	return user, nil
}

// ListUsers returns all users
func (s *Service) ListUsers() ([]*User, error) {
	users, err := s.db.ListUsers()
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// ProcessReceipt stores a receipt image, interprets it and saves the expense
func (s *Service) ProcessReceipt(ctx context.Context, userID, filename string, data []byte, contentType string) (*Expense, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("receipt file is empty: %w", ErrInvalidInput)
	}
	if _, err := s.RegisterUser(userID, ""); err != nil {
		return nil, err
	}

	id := s.idGenerator.Generate()
	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	scan, err := s.scanner.Scan(ctx, scanning.Image{Data: data, ContentType: contentType})
	if err != nil {
		slog.Error("Failed to scan receipt",
			"user", userID,
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.removeFile(savedPath)
		if errors.Is(err, scanning.ErrInsufficientInput) {
			return nil, ErrUnreadableReceipt
		}
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}

	expense := newExpense(id, strings.TrimSpace(userID), scan, s.timeSource.Now())
	expense.Filename = savedPath
	expense.ContentType = contentType

	if err := s.db.SaveExpense(expense); err != nil {
		s.removeFile(savedPath)
		return nil, fmt.Errorf("saving expense to database: %w", err)
	}

	slog.Info("Expense saved", "id", expense.ID, "user", expense.UserID, "source", expense.Source,
		"total", expense.Total.String(), "items", len(expense.Items))
	return expense, nil
}

func (s *Service) removeFile(path string) {
	if err := s.storage.Delete(path); err != nil {
		slog.Warn("Failed to delete file", "filename", path, "error", err)
	}
}

// GetExpense retrieves an expense owned by userID
func (s *Service) GetExpense(userID, id string) (*Expense, error) {
	expense, err := s.db.GetExpense(id)
	if err != nil {
		return nil, fmt.Errorf("getting expense: %w", err)
	}
	if expense.UserID != userID {
		return nil, ErrForbidden
	}
	return expense, nil
}

// ListExpenses returns all expenses of userID, newest first
func (s *Service) ListExpenses(userID string) ([]*Expense, error) {
	expenses, err := s.db.ListExpenses(userID)
	if err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}
	return expenses, nil
}

// RecentExpenses returns at most limit of the newest expenses of userID
func (s *Service) RecentExpenses(userID string, limit int) ([]*Expense, error) {
	expenses, err := s.ListExpenses(userID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(expenses) > limit {
		expenses = expenses[:limit]
	}
	return expenses, nil
}

// DeleteExpense removes an expense owned by userID and its file
func (s *Service) DeleteExpense(userID, id string) error {
	expense, err := s.GetExpense(userID, id)
	if err != nil {
		return err
	}

	// A missing file must not keep the record around
	if expense.Filename != "" {
		s.removeFile(expense.Filename)
	}

	if err := s.db.DeleteExpense(id); err != nil {
		return fmt.Errorf("deleting expense from database: %w", err)
	}
	return nil
}

// GetExpenseFile retrieves the original receipt image of an expense owned by userID
func (s *Service) GetExpenseFile(userID, id string) ([]byte, string, error) {
	expense, err := s.GetExpense(userID, id)
	if err != nil {
		return nil, "", err
	}

	data, err := s.storage.Get(expense.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting expense file: %w", err)
	}
	return data, expense.ContentType, nil
}

// UsersWithExpensesOn returns the users that have at least one expense dated day
func (s *Service) UsersWithExpensesOn(day time.Time) ([]*User, error) {
	users, err := s.ListUsers()
	if err != nil {
		return nil, err
	}
	var active []*User
	for _, user := range users {
		expenses, err := s.ListExpenses(user.ID)
		if err != nil {
			return nil, err
		}
		for _, e := range expenses {
			if sameDay(e.Date, day) {
				active = append(active, user)
				break
			}
		}
	}
	return active, nil
}
