package repository

import (
	"encoding/json"
	"strings"

	"arichat/internal/entity"
	"arichat/internal/store"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLiteNodeRepository persists the store tree as one row per leaf. It is
// the store's Persister: a write batch becomes a single transaction, which
// is what keeps the multi-path bootstrap update atomic on disk as well.
type SQLiteNodeRepository struct {
	db *gorm.DB
}

func NewSQLiteNodeRepository(db *gorm.DB) store.Persister {
	return &SQLiteNodeRepository{db}
}

func (r *SQLiteNodeRepository) Load() ([]store.Write, error) {
	var nodes []entity.StoreNode
	if err := r.db.Order("path").Find(&nodes).Error; err != nil {
		return nil, err
	}
	writes := make([]store.Write, 0, len(nodes))
	for _, n := range nodes {
		var v any
		if err := json.Unmarshal([]byte(n.Value), &v); err != nil {
			return nil, err
		}
		writes = append(writes, store.Write{Path: n.Path, Value: v})
	}
	return writes, nil
}

func (r *SQLiteNodeRepository) Apply(writes []store.Write) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, w := range writes {
			if err := clearSubtree(tx, w.Path); err != nil {
				return err
			}
			if w.Value == nil {
				continue
			}
			for _, leaf := range store.Flatten(w.Path, w.Value) {
				if leaf.Value == nil {
					continue
				}
				payload, err := json.Marshal(leaf.Value)
				if err != nil {
					return err
				}
				node := entity.StoreNode{Path: leaf.Path, Value: string(payload)}
				if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&node).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// clearSubtree removes the leaf rows a write at path replaces: the path
// itself, everything below it, and any ancestor that used to be a leaf.
func clearSubtree(tx *gorm.DB, path string) error {
	if path == "" {
		return tx.Where("path LIKE ?", "%").Delete(&entity.StoreNode{}).Error
	}
	if err := tx.Where("path = ? OR path LIKE ?", path, path+"/%").Delete(&entity.StoreNode{}).Error; err != nil {
		return err
	}
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return nil
	}
	ancestors := make([]string, 0, len(parts)-1)
	for i := 1; i < len(parts); i++ {
		ancestors = append(ancestors, strings.Join(parts[:i], "/"))
	}
	return tx.Where("path IN ?", ancestors).Delete(&entity.StoreNode{}).Error
}
