package memory

import (
	"context"
	"sync"
	"time"

	"github.com/armtemiy/armlab/pkg/domain"
	"github.com/google/uuid"
)

// UserRecord is a stored user row.
type UserRecord struct {
	ID         string
	ExternalID string
	Username   string
	IsAdmin    bool
}

// DiagnosticRecord is a stored diagnostic outcome.
type DiagnosticRecord struct {
	ID        string
	UserID    *string
	TreeID    string
	Answers   map[string]string
	Result    domain.ResultSnapshot
	CreatedAt time.Time
}

// ResultStore implements ports.ResultStore in memory.
type ResultStore struct {
	mu      sync.Mutex
	users   map[string]*UserRecord // by external id
	results []DiagnosticRecord

	// Fail, when set, is returned by InsertDiagnosticResult.
	Fail error
}

// NewResultStore creates an empty result store.
func NewResultStore() *ResultStore {
	return &ResultStore{users: make(map[string]*UserRecord)}
}

func (s *ResultStore) UpsertUser(ctx context.Context, externalID, username string, isAdmin bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[externalID]; ok {
		u.Username = username
		u.IsAdmin = isAdmin
		return u.ID, nil
	}
	u := &UserRecord{
		ID:         uuid.NewString(),
		ExternalID: externalID,
		Username:   username,
		IsAdmin:    isAdmin,
	}
	s.users[externalID] = u
	return u.ID, nil
}

func (s *ResultStore) InsertDiagnosticResult(ctx context.Context, userID *string, treeID string, answers map[string]string, result domain.ResultSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Fail != nil {
		return s.Fail
	}

	copied := make(map[string]string, len(answers))
	for k, v := range answers {
		copied[k] = v
	}
	s.results = append(s.results, DiagnosticRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		TreeID:    treeID,
		Answers:   copied,
		Result:    result,
		CreatedAt: time.Now(),
	})
	return nil
}

// Results returns a copy of every stored outcome in insertion order.
func (s *ResultStore) Results() []DiagnosticRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DiagnosticRecord(nil), s.results...)
}

// User looks up a user by external id.
func (s *ResultStore) User(externalID string) (UserRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[externalID]
	if !ok {
		return UserRecord{}, false
	}
	return *u, true
}
