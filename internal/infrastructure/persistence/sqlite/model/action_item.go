package model

type ActionItem struct {
	CAPAID        uint64  `gorm:"column:capa_id;primaryKey;autoIncrement:false"`
	ItemID        uint64  `gorm:"column:item_id;primaryKey;autoIncrement:false"`
	Description   string  `gorm:"column:description;type:text;not null"`
	Assignee      string  `gorm:"column:assignee;type:text;not null"`
	DueDate       string  `gorm:"column:due_date;type:text;not null"`
	Status        string  `gorm:"column:status;type:text;not null"`
	CompletedDate *string `gorm:"column:completed_date;type:text"`
	Notes         string  `gorm:"column:notes;type:text;not null;default:''"`
}

func (ActionItem) TableName() string {
	return "capa_action_items"
}
