package capa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"capaflow/internal/bootstrap/logging"
	domaincapa "capaflow/internal/domain/capa"
	"capaflow/internal/errs"
)

const importPlanVersion = 1

type importActionItem struct {
	Description string `toml:"description"`
	Assignee    string `toml:"assignee"`
	DueDate     string `toml:"due_date"`
	Notes       string `toml:"notes"`
	Status      string `toml:"status"`
}

type importVerification struct {
	Verifier string `toml:"verifier"`
	Result   string `toml:"result"`
	Rating   *int   `toml:"rating"`
	Notes    string `toml:"notes"`
}

type importCAPA struct {
	Title              string               `toml:"title"`
	Type               string               `toml:"type"`
	Priority           string               `toml:"priority"`
	Category           string               `toml:"category"`
	SourceType         string               `toml:"source_type"`
	SourceReference    string               `toml:"source_reference"`
	ProblemStatement   string               `toml:"problem_statement"`
	Description        string               `toml:"description"`
	RootCause          string               `toml:"root_cause"`
	ProposedActions    string               `toml:"proposed_actions"`
	TargetDate         string               `toml:"target_date"`
	Assignee           string               `toml:"assignee"`
	Owner              string               `toml:"owner"`
	VerificationMethod string               `toml:"verification_method"`
	RelatedNCRs        []string             `toml:"related_ncrs"`
	Open               bool                 `toml:"open"`
	Actions            []importActionItem   `toml:"action"`
	Verifications      []importVerification `toml:"verification"`
}

// ImportPlan is a TOML seed file:
//
//	version = 1
//
//	[[capa]]
//	title = "Tool wear fix"
//	type = "corrective"
//	priority = "high"
//	category = "equipment"
//
//	  [[capa.action]]
//	  description = "Replace worn insert"
//	  assignee = "ops"
//	  due_date = "2026-02-01"
//	  status = "completed"
//
//	  [[capa.verification]]
//	  verifier = "qa"
//	  result = "effective"
//	  rating = 90
type ImportPlan struct {
	Version int          `toml:"version"`
	CAPAs   []importCAPA `toml:"capa"`
}

type ImportResult struct {
	Created []string
}

func LoadImportPlan(path string) (ImportPlan, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return ImportPlan{}, errors.New("import file is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return ImportPlan{}, errs.Wrapf(err, "read import file %s", path)
	}
	return ParseImportPlan(raw)
}

func ParseImportPlan(raw []byte) (ImportPlan, error) {
	var plan ImportPlan
	if err := toml.Unmarshal(raw, &plan); err != nil {
		return ImportPlan{}, errs.Wrap(err, "decode import plan")
	}
	if plan.Version != importPlanVersion {
		return ImportPlan{}, fmt.Errorf("unsupported import plan version %d: expected version = %d", plan.Version, importPlanVersion)
	}
	return plan, nil
}

// Import replays a plan through the public operations in file order: create,
// optional open, add items, item status updates, then verifications. It stops
// at the first failure, deletes the partially built CAPA of the failing entry
// and reports the CAPAs fully imported before it.
func (s *Service) Import(ctx context.Context, plan ImportPlan) (ImportResult, error) {
	var result ImportResult
	for i, entry := range plan.CAPAs {
		number, err := s.importOne(ctx, entry)
		if err != nil {
			if number != "" {
				if delErr := s.DeleteCAPA(ctx, number); delErr != nil {
					logging.Warn(ctx, "discard partially imported capa failed", numberAttr(number), errAttr(delErr))
					result.Created = append(result.Created, number)
				}
			}
			return result, errs.Wrapf(err, "import capa[%d] %q", i, entry.Title)
		}
		result.Created = append(result.Created, number)
	}
	logging.Info(ctx, "import finished", slog.Int("created", len(result.Created)))
	return result, nil
}

func (s *Service) importOne(ctx context.Context, entry importCAPA) (string, error) {
	target, err := parseOptionalDate("target_date", entry.TargetDate)
	if err != nil {
		return "", err
	}

	created, err := s.CreateCAPA(ctx, CreateCAPAInput{
		Title:              entry.Title,
		Type:               domaincapa.Type(entry.Type),
		Priority:           domaincapa.Priority(entry.Priority),
		Category:           domaincapa.Category(entry.Category),
		SourceType:         domaincapa.SourceType(entry.SourceType),
		SourceReference:    entry.SourceReference,
		ProblemStatement:   entry.ProblemStatement,
		Description:        entry.Description,
		RootCause:          entry.RootCause,
		ProposedActions:    entry.ProposedActions,
		TargetDate:         target,
		Assignee:           entry.Assignee,
		Owner:              entry.Owner,
		VerificationMethod: entry.VerificationMethod,
		RelatedNCRs:        entry.RelatedNCRs,
	})
	if err != nil {
		return "", err
	}
	number := created.Number

	if entry.Open {
		if _, err := s.OpenCAPA(ctx, number); err != nil {
			return number, err
		}
	}

	itemIDs := make([]uint64, 0, len(entry.Actions))
	for _, action := range entry.Actions {
		due, err := parseOptionalDate("due_date", action.DueDate)
		if err != nil {
			return number, err
		}
		var dueDate time.Time
		if due != nil {
			dueDate = *due
		}
		item, err := s.AddActionItem(ctx, AddActionItemInput{
			Number:      number,
			Description: action.Description,
			Assignee:    action.Assignee,
			DueDate:     dueDate,
			Notes:       action.Notes,
		})
		if err != nil {
			return number, err
		}
		itemIDs = append(itemIDs, item.ID)
	}

	for i, action := range entry.Actions {
		status := strings.TrimSpace(action.Status)
		if status == "" || status == string(domaincapa.ActionPending) {
			continue
		}
		if _, err := s.UpdateActionItemStatus(ctx, UpdateActionItemStatusInput{
			Number: number,
			ItemID: itemIDs[i],
			Status: status,
		}); err != nil {
			return number, err
		}
	}

	for _, v := range entry.Verifications {
		if _, err := s.RecordVerification(ctx, RecordVerificationInput{
			Number:   number,
			Verifier: v.Verifier,
			Result:   v.Result,
			Rating:   v.Rating,
			Notes:    v.Notes,
		}); err != nil {
			return number, err
		}
	}
	return number, nil
}

func parseOptionalDate(field string, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := domaincapa.ParseDate(raw)
	if err != nil {
		return nil, errs.Wrap(err, field)
	}
	return &t, nil
}
