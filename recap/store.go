package recap

import (
	"context"
	"time"
)

// EntryStore reads day records. FetchDayRecords returns records with start <= date < end,
// ordered by date.
type EntryStore interface {
	FetchDayRecords(ctx context.Context, start, end time.Time) ([]DayRecord, error)
}

// PackStore persists generated packs. Upserts replace every derived field of the key.
type PackStore interface {
	UpsertMonthlyPack(ctx context.Context, rec MonthlyPackRecord) error
	UpsertYearlySummary(ctx context.Context, rec YearlySummaryRecord) error
	MonthlyPackRecords(ctx context.Context, year int) ([]MonthlyPackRecord, error)
}
