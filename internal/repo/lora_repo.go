// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the LoRA
// catalog: records, pairwise-deny rules, and sync bookkeeping.
package repo

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sdforge/sdforge/internal/domain"
)

// UpsertLoRA inserts or replaces a LoRA record keyed by name.
func UpsertLoRA(ctx context.Context, db *gorm.DB, l *domain.LoRA) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		UpdateAll: true,
	}).Create(l).Error
}

// ListLoRAs returns every catalog record, ordered by name for stable output.
func ListLoRAs(ctx context.Context, db *gorm.DB) ([]domain.LoRA, error) {
	var out []domain.LoRA
	err := db.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}

// ListLoRAsByCategory returns catalog records in a single category.
func ListLoRAsByCategory(ctx context.Context, db *gorm.DB, category string) ([]domain.LoRA, error) {
	var out []domain.LoRA
	err := db.WithContext(ctx).Where("category = ?", category).Order("name ASC").Find(&out).Error
	return out, err
}

// GetLoRA fetches one catalog record by name.
func GetLoRA(ctx context.Context, db *gorm.DB, name string) (*domain.LoRA, error) {
	var l domain.LoRA
	err := db.WithContext(ctx).Where("name = ?", name).First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListPairwiseDeny returns every configured pairwise-deny rule.
func ListPairwiseDeny(ctx context.Context, db *gorm.DB) ([]domain.PairwiseDeny, error) {
	var out []domain.PairwiseDeny
	err := db.WithContext(ctx).Find(&out).Error
	return out, err
}

// AddPairwiseDeny records a new deny rule, normalizing the pair order so
// (A,B) and (B,A) are treated as the same rule.
func AddPairwiseDeny(ctx context.Context, db *gorm.DB, nameA, nameB, reason string) error {
	pair := []string{nameA, nameB}
	sort.Strings(pair)
	return db.WithContext(ctx).Create(&domain.PairwiseDeny{NameA: pair[0], NameB: pair[1], Reason: reason}).Error
}

// LastSyncMetadata returns the most recent sync bookkeeping row, or nil if
// no sync has run yet.
func LastSyncMetadata(ctx context.Context, db *gorm.DB) (*domain.SyncMetadata, error) {
	var m domain.SyncMetadata
	err := db.WithContext(ctx).Order("id DESC").First(&m).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordSync persists the hash of the just-ingested LoRA list.
func RecordSync(ctx context.Context, db *gorm.DB, hash string) error {
	return db.WithContext(ctx).Create(&domain.SyncMetadata{ListHash: hash, SyncedAt: time.Now().UTC()}).Error
}
