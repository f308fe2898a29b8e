// Package storage holds the only durable client-side state: the bearer token,
// kept per browser namespace under a fixed key, like browser local storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenKey is the fixed key the bearer token is stored under.
const TokenKey = "trazio_token"

// Entry is one key/value pair of a namespace.
type Entry struct {
	Namespace string `gorm:"primaryKey;size:64"`
	Key       string `gorm:"column:entry_key;primaryKey;size:128"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// TableName keeps the table name stable across gorm naming strategies.
func (Entry) TableName() string {
	return "local_storage"
}

// LocalStorage is a namespaced key/value store.
type LocalStorage interface {
	Get(ctx context.Context, namespace, key string) (string, bool, error)
	Set(ctx context.Context, namespace, key, value string) error
	Remove(ctx context.Context, namespace, key string) error
}

type gormStorage struct {
	db *gorm.DB
}

// NewLocalStorage returns a LocalStorage backed by db. The Entry table must exist.
func NewLocalStorage(db *gorm.DB) LocalStorage {
	return &gormStorage{db: db}
}

func (s *gormStorage) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	var e Entry
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND entry_key = ?", namespace, key).
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s/%s: %w", namespace, key, err)
	}
	return e.Value, true, nil
}

func (s *gormStorage) Set(ctx context.Context, namespace, key, value string) error {
	e := Entry{Namespace: namespace, Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "namespace"}, {Name: "entry_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&e).Error
	if err != nil {
		return fmt.Errorf("write %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *gormStorage) Remove(ctx context.Context, namespace, key string) error {
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND entry_key = ?", namespace, key).
		Delete(&Entry{}).Error
	if err != nil {
		return fmt.Errorf("remove %s/%s: %w", namespace, key, err)
	}
	return nil
}

// TokenStore reads and writes the bearer token of one browser namespace.
type TokenStore struct {
	storage   LocalStorage
	namespace string
}

// NewTokenStore binds s to namespace.
func NewTokenStore(s LocalStorage, namespace string) *TokenStore {
	return &TokenStore{storage: s, namespace: namespace}
}

// Token returns the stored token, or "" when there is none.
func (t *TokenStore) Token(ctx context.Context) (string, error) {
	v, ok, err := t.storage.Get(ctx, t.namespace, TokenKey)
	if err != nil || !ok {
		return "", err
	}
	return v, nil
}

// SetToken stores token under the fixed key.
func (t *TokenStore) SetToken(ctx context.Context, token string) error {
	return t.storage.Set(ctx, t.namespace, TokenKey, token)
}

// Clear removes the stored token.
func (t *TokenStore) Clear(ctx context.Context) error {
	return t.storage.Remove(ctx, t.namespace, TokenKey)
}
