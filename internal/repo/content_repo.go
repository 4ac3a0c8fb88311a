// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the content
// taxonomy: categories (a forest of slash-delimited paths) and the words
// mapped onto them.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sdforge/sdforge/internal/domain"
)

// UpsertCategory inserts or replaces a taxonomy node.
func UpsertCategory(ctx context.Context, db *gorm.DB, c *domain.ContentCategory) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		UpdateAll: true,
	}).Create(c).Error
}

// GetCategory fetches a taxonomy node by path.
func GetCategory(ctx context.Context, db *gorm.DB, path string) (*domain.ContentCategory, error) {
	var c domain.ContentCategory
	err := db.WithContext(ctx).Where("path = ?", path).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCategories returns the full taxonomy forest.
func ListCategories(ctx context.Context, db *gorm.DB) ([]domain.ContentCategory, error) {
	var out []domain.ContentCategory
	err := db.WithContext(ctx).Order("path ASC").Find(&out).Error
	return out, err
}

// UpsertWord inserts or replaces a (word, category_path) mapping.
func UpsertWord(ctx context.Context, db *gorm.DB, w *domain.ContentWord) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "word"}, {Name: "category_path"}},
		UpdateAll: true,
	}).Create(w).Error
}

// ListWords returns every word-category mapping.
func ListWords(ctx context.Context, db *gorm.DB) ([]domain.ContentWord, error) {
	var out []domain.ContentWord
	err := db.WithContext(ctx).Find(&out).Error
	return out, err
}

// SearchWords returns word-category mappings whose word contains the query
// substring (case-insensitive).
func SearchWords(ctx context.Context, db *gorm.DB, query string) ([]domain.ContentWord, error) {
	var out []domain.ContentWord
	err := db.WithContext(ctx).Where("word LIKE ?", "%"+query+"%").Order("word ASC").Find(&out).Error
	return out, err
}
