package expense

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const (
	usersBucket    = "users"
	expensesBucket = "expenses"
)

// DB defines the interface for database operations
type DB interface {
	// SaveUser creates or replaces a user
	SaveUser(user *User) error

	// GetUser retrieves a user by ID
	GetUser(id string) (*User, error)

	// ListUsers returns all users
	ListUsers() ([]*User, error)

	// SaveExpense creates or replaces an expense
	SaveExpense(expense *Expense) error

	// GetExpense retrieves an expense by ID
	GetExpense(id string) (*Expense, error)

	// ListExpenses returns a user's expenses, newest first
	ListExpenses(userID string) ([]*Expense, error)

	// DeleteExpense removes an expense
	DeleteExpense(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{usersBucket, expensesBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

func put(tx *bbolt.Tx, bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", bucket, err)
	}
	return tx.Bucket([]byte(bucket)).Put([]byte(key), data)
}

func get(tx *bbolt.Tx, bucket, key string, v any) error {
	data := tx.Bucket([]byte(bucket)).Get([]byte(key))
	if data == nil {
		return fmt.Errorf("%s %s: %w", bucket, key, ErrNotFound)
	}
	return json.Unmarshal(data, v)
}

// SaveUser saves a user to the database
func (b *BoltDB) SaveUser(user *User) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, usersBucket, user.ID, user)
	})
}

// GetUser retrieves a user by ID
func (b *BoltDB) GetUser(id string) (*User, error) {
	var user User
	if err := b.db.View(func(tx *bbolt.Tx) error {
		return get(tx, usersBucket, id, &user)
	}); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers returns all users ordered by ID
func (b *BoltDB) ListUsers() ([]*User, error) {
	users := make([]*User, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(usersBucket)).ForEach(func(k, v []byte) error {
			var user User
			if err := json.Unmarshal(v, &user); err != nil {
				return fmt.Errorf("unmarshaling user: %w", err)
			}
			users = append(users, &user)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// SaveExpense saves an expense to the database
func (b *BoltDB) SaveExpense(expense *Expense) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, expensesBucket, expense.ID, expense)
	})
}

// GetExpense retrieves an expense by ID
func (b *BoltDB) GetExpense(id string) (*Expense, error) {
	var expense Expense
	if err := b.db.View(func(tx *bbolt.Tx) error {
		return get(tx, expensesBucket, id, &expense)
	}); err != nil {
		return nil, err
	}
	return &expense, nil
}

// ListExpenses returns the expenses of userID, newest first
func (b *BoltDB) ListExpenses(userID string) ([]*Expense, error) {
	expenses := make([]*Expense, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(expensesBucket)).ForEach(func(k, v []byte) error {
			var expense Expense
			if err := json.Unmarshal(v, &expense); err != nil {
				return fmt.Errorf("unmarshaling expense: %w", err)
			}
			if expense.UserID == userID {
				expenses = append(expenses, &expense)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(expenses)
	return expenses, nil
}

// DeleteExpense removes an expense from the database
func (b *BoltDB) DeleteExpense(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(expensesBucket))
		if bucket.Get([]byte(id)) == nil {
			return fmt.Errorf("%s %s: %w", expensesBucket, id, ErrNotFound)
		}
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

// sortNewestFirst orders by expense date, then creation time, both descending
func sortNewestFirst(expenses []*Expense) {
	sort.SliceStable(expenses, func(i, j int) bool {
		if !expenses[i].Date.Equal(expenses[j].Date) {
			return expenses[i].Date.After(expenses[j].Date)
		}
		return expenses[i].CreatedAt.After(expenses[j].CreatedAt)
	})
}
