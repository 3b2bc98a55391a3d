package model

// Sequence is a named monotonic counter owned by the store.
type Sequence struct {
	Name  string `gorm:"column:name;type:text;primaryKey"`
	Value uint64 `gorm:"column:value;not null"`
}

func (Sequence) TableName() string {
	return "capa_sequences"
}
