package model

type RelatedNCR struct {
	CAPAID   uint64 `gorm:"column:capa_id;primaryKey;autoIncrement:false"`
	NCRID    string `gorm:"column:ncr_id;type:text;primaryKey"`
	Position int    `gorm:"column:position;not null"`
}

func (RelatedNCR) TableName() string {
	return "capa_related_ncrs"
}
