package capa

import (
	"log/slog"
	"time"

	domaincapa "capaflow/internal/domain/capa"
	"capaflow/internal/errs"
)

func parseNumber(raw string) (string, error) {
	return domaincapa.ParseNumber(raw)
}

func cacheStatusKey(number string) string {
	return "capa_status:" + number
}

func numberAttr(number string) slog.Attr {
	return slog.String("capa_number", number)
}

func errAttr(err error) slog.Attr {
	return slog.Any("err", errs.Loggable(err))
}

func toDetail(record domaincapa.CAPA, now time.Time) CAPADetail {
	detail := CAPADetail{
		CAPA:     record,
		Progress: domaincapa.Progress(record),
		Overdue:  record.IsOverdue(now),
	}
	for _, item := range record.ActionItems {
		if item.IsOverdue(now) {
			detail.OverdueItems = append(detail.OverdueItems, item.ID)
		}
	}
	return detail
}
