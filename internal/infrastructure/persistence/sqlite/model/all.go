package model

// All lists every table for AutoMigrate.
func All() []any {
	return []any{
		&CAPA{},
		&ActionItem{},
		&Verification{},
		&RelatedNCR{},
		&Sequence{},
		&KV{},
	}
}
