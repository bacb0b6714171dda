package entity

// StoreNode is one persisted leaf of the hierarchical store tree. Interior
// nodes are implicit: they exist whenever a leaf path passes through them.
type StoreNode struct {
	Path  string `gorm:"primaryKey"`
	Value string `gorm:"not null"` // JSON-encoded leaf value
}
