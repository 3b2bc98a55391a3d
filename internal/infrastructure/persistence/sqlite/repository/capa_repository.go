package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"capaflow/internal/domain/capa"
	"capaflow/internal/errs"
	"capaflow/internal/infrastructure/persistence/sqlite/model"
	"capaflow/internal/ports"
)

const capaNumberSequence = "capa_number"

type CAPARepository struct {
	db *gorm.DB
}

var _ ports.CAPARepository = (*CAPARepository)(nil)

func NewCAPARepository(db *gorm.DB) *CAPARepository {
	return &CAPARepository{db: db}
}

func (r *CAPARepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

// inTx runs fn on the context transaction, or opens one when the caller has none.
func (r *CAPARepository) inTx(ctx context.Context, fn func(db *gorm.DB) error) error {
	if ports.TxFromContext(ctx) != nil {
		db, err := r.dbFromContext(ctx)
		if err != nil {
			return err
		}
		return fn(db)
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	return r.db.WithContext(ctx).Transaction(fn)
}

// NextNumber increments the store-owned counter and returns the new value.
func (r *CAPARepository) NextNumber(ctx context.Context) (uint64, error) {
	var next uint64
	err := r.inTx(ctx, func(db *gorm.DB) error {
		seed := model.Sequence{Name: capaNumberSequence, Value: 1}
		if err := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.Assignments(map[string]any{
				"value": gorm.Expr("value + 1"),
			}),
		}).Create(&seed).Error; err != nil {
			return errs.Wrap(err, "increment capa sequence")
		}

		var row model.Sequence
		if err := db.Where("name = ?", capaNumberSequence).Take(&row).Error; err != nil {
			return errs.Wrap(err, "read capa sequence")
		}
		next = row.Value
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (r *CAPARepository) Create(ctx context.Context, record capa.CAPA) error {
	return r.inTx(ctx, func(db *gorm.DB) error {
		row := toCAPARow(record)
		if err := db.Create(&row).Error; err != nil {
			return errs.Wrapf(err, "insert capa %s", record.Number)
		}
		return writeChildren(db, row.CAPAID, record)
	})
}

func (r *CAPARepository) Get(ctx context.Context, number string) (capa.CAPA, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return capa.CAPA{}, err
	}

	row, err := findCAPARow(db, number)
	if err != nil {
		return capa.CAPA{}, err
	}

	items, err := loadAggregates(db, []model.CAPA{row})
	if err != nil {
		return capa.CAPA{}, err
	}
	return items[0], nil
}

func (r *CAPARepository) List(ctx context.Context, filter ports.CAPAFilter) ([]capa.CAPA, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.CAPA{})
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		query = query.Where("status IN ?", statuses)
	}
	if filter.OnlyActive {
		query = query.Where("status NOT IN ?", []string{string(capa.StatusClosed), string(capa.StatusCancelled)})
	}
	if filter.Type != "" {
		query = query.Where("type = ?", string(filter.Type))
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", string(filter.Priority))
	}
	if filter.Category != "" {
		query = query.Where("category = ?", string(filter.Category))
	}
	if assignee := strings.TrimSpace(filter.Assignee); assignee != "" {
		query = query.Where("assignee = ?", assignee)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		query = query.Where("lower(number) LIKE ? OR lower(title) LIKE ? OR lower(description) LIKE ?", like, like, like)
	}

	var rows []model.CAPA
	if err := query.Order("capa_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query capas")
	}
	if len(rows) == 0 {
		return []capa.CAPA{}, nil
	}
	return loadAggregates(db, rows)
}

// Save writes the aggregate. Verification records are append-only, so existing
// rows are never rewritten.
func (r *CAPARepository) Save(ctx context.Context, record capa.CAPA) error {
	return r.inTx(ctx, func(db *gorm.DB) error {
		existing, err := findCAPARow(db, record.Number)
		if err != nil {
			return err
		}

		row := toCAPARow(record)
		row.CAPAID = existing.CAPAID
		if err := db.Model(&model.CAPA{}).
			Where("capa_id = ?", existing.CAPAID).
			Select("*").
			Omit("capa_id", "number", "created_at").
			Updates(&row).Error; err != nil {
			return errs.Wrapf(err, "update capa %s", record.Number)
		}

		keep := make([]uint64, 0, len(record.ActionItems))
		for _, item := range record.ActionItems {
			keep = append(keep, item.ID)
		}
		stale := db.Where("capa_id = ?", existing.CAPAID)
		if len(keep) > 0 {
			stale = stale.Where("item_id NOT IN ?", keep)
		}
		if err := stale.Delete(&model.ActionItem{}).Error; err != nil {
			return errs.Wrap(err, "delete removed action items")
		}

		if err := db.Where("capa_id = ?", existing.CAPAID).Delete(&model.RelatedNCR{}).Error; err != nil {
			return errs.Wrap(err, "reset related ncrs")
		}

		return writeChildren(db, existing.CAPAID, record)
	})
}

func (r *CAPARepository) Delete(ctx context.Context, number string) error {
	return r.inTx(ctx, func(db *gorm.DB) error {
		row, err := findCAPARow(db, number)
		if err != nil {
			return err
		}

		for _, child := range []any{&model.ActionItem{}, &model.Verification{}, &model.RelatedNCR{}} {
			if err := db.Where("capa_id = ?", row.CAPAID).Delete(child).Error; err != nil {
				return errs.Wrapf(err, "delete children of %s", number)
			}
		}
		if err := db.Where("capa_id = ?", row.CAPAID).Delete(&model.CAPA{}).Error; err != nil {
			return errs.Wrapf(err, "delete capa %s", number)
		}
		return nil
	})
}

func findCAPARow(db *gorm.DB, number string) (model.CAPA, error) {
	var row model.CAPA
	if err := db.Where("number = ?", number).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.CAPA{}, capa.CAPANotFound(number)
		}
		return model.CAPA{}, errs.Wrapf(err, "query capa %s", number)
	}
	return row, nil
}

func writeChildren(db *gorm.DB, capaID uint64, record capa.CAPA) error {
	if len(record.ActionItems) > 0 {
		rows := make([]model.ActionItem, 0, len(record.ActionItems))
		for _, item := range record.ActionItems {
			rows = append(rows, toActionItemRow(capaID, item))
		}
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "capa_id"}, {Name: "item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"description", "assignee", "due_date", "status", "completed_date", "notes"}),
		}).Create(&rows).Error; err != nil {
			return errs.Wrap(err, "upsert action items")
		}
	}

	if len(record.VerificationRecords) > 0 {
		rows := make([]model.Verification, 0, len(record.VerificationRecords))
		for _, rec := range record.VerificationRecords {
			rows = append(rows, toVerificationRow(capaID, rec))
		}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
			return errs.Wrap(err, "insert verification records")
		}
	}

	if len(record.RelatedNCRs) > 0 {
		rows := make([]model.RelatedNCR, 0, len(record.RelatedNCRs))
		for i, id := range record.RelatedNCRs {
			rows = append(rows, model.RelatedNCR{CAPAID: capaID, NCRID: id, Position: i})
		}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
			return errs.Wrap(err, "insert related ncrs")
		}
	}
	return nil
}

// loadAggregates fetches the children of every row in three queries and assembles
// the aggregates in row order.
func loadAggregates(db *gorm.DB, rows []model.CAPA) ([]capa.CAPA, error) {
	ids := make([]uint64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.CAPAID)
	}

	var itemRows []model.ActionItem
	if err := db.Where("capa_id IN ?", ids).Order("capa_id asc, item_id asc").Find(&itemRows).Error; err != nil {
		return nil, errs.Wrap(err, "query action items")
	}
	var verificationRows []model.Verification
	if err := db.Where("capa_id IN ?", ids).Order("capa_id asc, verification_id asc").Find(&verificationRows).Error; err != nil {
		return nil, errs.Wrap(err, "query verification records")
	}
	var ncrRows []model.RelatedNCR
	if err := db.Where("capa_id IN ?", ids).Order("capa_id asc, position asc").Find(&ncrRows).Error; err != nil {
		return nil, errs.Wrap(err, "query related ncrs")
	}

	out := make([]capa.CAPA, 0, len(rows))
	index := make(map[uint64]int, len(rows))
	for _, row := range rows {
		record, err := fromCAPARow(row)
		if err != nil {
			return nil, err
		}
		index[row.CAPAID] = len(out)
		out = append(out, record)
	}

	for _, row := range itemRows {
		item, err := fromActionItemRow(row)
		if err != nil {
			return nil, err
		}
		i := index[row.CAPAID]
		out[i].ActionItems = append(out[i].ActionItems, item)
	}
	for _, row := range verificationRows {
		rec, err := fromVerificationRow(row)
		if err != nil {
			return nil, err
		}
		i := index[row.CAPAID]
		out[i].VerificationRecords = append(out[i].VerificationRecords, rec)
	}
	for _, row := range ncrRows {
		i := index[row.CAPAID]
		out[i].RelatedNCRs = append(out[i].RelatedNCRs, row.NCRID)
	}
	return out, nil
}
