package model

type Verification struct {
	CAPAID         uint64 `gorm:"column:capa_id;primaryKey;autoIncrement:false"`
	VerificationID uint64 `gorm:"column:verification_id;primaryKey;autoIncrement:false"`
	RecordedAt     string `gorm:"column:recorded_at;type:text;not null"`
	Verifier       string `gorm:"column:verifier;type:text;not null;default:''"`
	Result         string `gorm:"column:result;type:text;not null"`
	Notes          string `gorm:"column:notes;type:text;not null;default:''"`
}

func (Verification) TableName() string {
	return "capa_verifications"
}
