package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/armtemiy/armlab/pkg/domain"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const overrideRowID = 1

// Store implements ports.ResultStore, ports.PurchaseStore and ports.TreeStore.
type Store struct {
	db *gorm.DB
}

// Open connects to the SQLite database at path (created if missing) and migrates it.
// ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)", path)
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// Every new connection would see an empty database.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(2 * time.Hour)
	}

	return New(db)
}

// New wraps an existing gorm connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&userRow{}, &diagnosticResultRow{}, &purchaseRow{}, &treeOverrideRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertUser inserts or refreshes the user keyed by the Telegram id.
func (s *Store) UpsertUser(ctx context.Context, externalID, username string, isAdmin bool) (string, error) {
	db := s.db.WithContext(ctx)

	row := userRow{
		ID:             uuid.NewString(),
		TelegramUserID: externalID,
		Username:       username,
		IsAdmin:        isAdmin,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "telegram_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "is_admin", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return "", fmt.Errorf("failed to upsert user: %w", err)
	}

	// On conflict the generated id was discarded; read back the stored one.
	var stored userRow
	if err := db.Where("telegram_user_id = ?", externalID).Take(&stored).Error; err != nil {
		return "", fmt.Errorf("failed to read user: %w", err)
	}
	return stored.ID, nil
}

// InsertDiagnosticResult stores one completed diagnostic.
func (s *Store) InsertDiagnosticResult(ctx context.Context, userID *string, treeID string, answers map[string]string, result domain.ResultSnapshot) error {
	row := diagnosticResultRow{
		ID:      uuid.NewString(),
		UserID:  userID,
		TreeID:  treeID,
		Answers: answers,
		Result:  result,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert diagnostic result: %w", err)
	}
	return nil
}

// DiagnosticResult is a stored outcome as read back from the database.
type DiagnosticResult struct {
	ID        string
	UserID    *string
	TreeID    string
	Answers   map[string]string
	Result    domain.ResultSnapshot
	CreatedAt time.Time
}

// RecentResults returns the latest outcomes, newest first.
func (s *Store) RecentResults(ctx context.Context, limit int) ([]DiagnosticResult, error) {
	var rows []diagnosticResultRow
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list diagnostic results: %w", err)
	}
	out := make([]DiagnosticResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, DiagnosticResult(r))
	}
	return out, nil
}

func (s *Store) CreatePurchase(ctx context.Context, p *domain.Purchase) error {
	row := purchaseRow{
		ID:          p.ID,
		UserID:      p.UserID,
		ItemSlug:    p.ItemSlug,
		StarsAmount: p.Amount,
		Status:      string(p.Status),
		ChargeID:    p.ChargeID,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create purchase: %w", err)
	}
	return nil
}

func (s *Store) UpdatePurchaseStatus(ctx context.Context, id string, status domain.PurchaseStatus, chargeID string) error {
	updates := map[string]any{
		"status":     string(status),
		"updated_at": time.Now(),
	}
	if chargeID != "" {
		updates["charge_id"] = chargeID
	}

	res := s.db.WithContext(ctx).Model(&purchaseRow{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update purchase: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrPurchaseNotFound
	}
	return nil
}

func (s *Store) GetPurchase(ctx context.Context, id string) (*domain.Purchase, error) {
	var row purchaseRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrPurchaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) HasPaid(ctx context.Context, userID, itemSlug string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&purchaseRow{}).
		Where("user_id = ? AND item_slug = ? AND status = ?", userID, itemSlug, string(domain.PurchasePaid)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check purchases: %w", err)
	}
	return count > 0, nil
}

func (s *Store) SaveOverride(ctx context.Context, tree *domain.Tree) error {
	body, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("failed to marshal tree: %w", err)
	}
	row := treeOverrideRow{ID: overrideRowID, Body: string(body)}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("failed to save tree override: %w", err)
	}
	return nil
}

func (s *Store) LoadOverride(ctx context.Context) (*domain.Tree, error) {
	var row treeOverrideRow
	err := s.db.WithContext(ctx).Where("id = ?", overrideRowID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNoOverride
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tree override: %w", err)
	}

	var tree domain.Tree
	if err := json.Unmarshal([]byte(row.Body), &tree); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tree: %w", err)
	}
	return &tree, nil
}

func (s *Store) DeleteOverride(ctx context.Context) error {
	return s.db.WithContext(ctx).Delete(&treeOverrideRow{}, overrideRowID).Error
}
