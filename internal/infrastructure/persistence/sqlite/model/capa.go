package model

type CAPA struct {
	CAPAID               uint64  `gorm:"column:capa_id;primaryKey;autoIncrement"`
	Number               string  `gorm:"column:number;type:text;not null;uniqueIndex"`
	Type                 string  `gorm:"column:type;type:text;not null;index"`
	Category             string  `gorm:"column:category;type:text;not null"`
	Priority             string  `gorm:"column:priority;type:text;not null"`
	SourceType           string  `gorm:"column:source_type;type:text;not null;default:''"`
	SourceReference      string  `gorm:"column:source_reference;type:text;not null;default:''"`
	Title                string  `gorm:"column:title;type:text;not null"`
	Description          string  `gorm:"column:description;type:text;not null;default:''"`
	ProblemStatement     string  `gorm:"column:problem_statement;type:text;not null;default:''"`
	RootCause            string  `gorm:"column:root_cause;type:text;not null;default:''"`
	ProposedActions      string  `gorm:"column:proposed_actions;type:text;not null;default:''"`
	CreatedAt            string  `gorm:"column:created_at;type:text;not null"`
	TargetDate           *string `gorm:"column:target_date;type:text"`
	ActualClosureDate    *string `gorm:"column:actual_closure_date;type:text"`
	Assignee             string  `gorm:"column:assignee;type:text;not null;default:'';index"`
	Owner                string  `gorm:"column:owner;type:text;not null;default:''"`
	VerificationRequired bool    `gorm:"column:verification_required;not null"`
	VerificationMethod   string  `gorm:"column:verification_method;type:text;not null;default:''"`
	EffectivenessRating  *int    `gorm:"column:effectiveness_rating"`
	Status               string  `gorm:"column:status;type:text;not null;index"`
}

func (CAPA) TableName() string {
	return "capas"
}
