// Package storage is the SQLite-backed entry and pack store used by the recap commands.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/theimaginaryfoundation/recap-o-bot/recap"
)

const dayKeyLayout = "2006-01-02"

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS day_records (
	day TEXT PRIMARY KEY,
	text TEXT NOT NULL DEFAULT '',
	mood TEXT NOT NULL DEFAULT '',
	starred INTEGER NOT NULL DEFAULT 0,
	keywords TEXT NOT NULL DEFAULT '[]',
	photos TEXT NOT NULL DEFAULT '[]',
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS monthly_packs (
	year INTEGER NOT NULL,
	month INTEGER NOT NULL,
	stats TEXT NOT NULL,
	narrative_text TEXT NOT NULL,
	generation_method TEXT NOT NULL,
	themed_photos TEXT NOT NULL,
	topic_source TEXT NOT NULL DEFAULT '',
	generated_at TEXT NOT NULL,
	PRIMARY KEY (year, month)
);

CREATE TABLE IF NOT EXISTS yearly_summaries (
	year INTEGER PRIMARY KEY,
	stats TEXT NOT NULL,
	narrative_text TEXT NOT NULL,
	generation_method TEXT NOT NULL,
	photos TEXT NOT NULL,
	generated_at TEXT NOT NULL
);
`

var (
	_ recap.EntryStore = (*Store)(nil)
	_ recap.PackStore  = (*Store)(nil)
)

// Store persists day records and generated packs. Writes are serialized; each upsert is a
// single transaction and the last writer for a key wins.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// New opens (creating if needed) the SQLite database at dbPath.
func New(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("storage: db path is empty")
	}
	// busy_timeout is per connection, so it rides on the DSN for every pooled connection.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: set WAL mode: %w", err)
	}
	if _, err := db.Exec(createTablesSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: create tables: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveDayRecord inserts or replaces the record for d's calendar day.
func (s *Store) SaveDayRecord(ctx context.Context, d recap.DayRecord) error {
	return s.SaveDayRecords(ctx, []recap.DayRecord{d})
}

// SaveDayRecords writes all records in one transaction. Records are normalized first.
func (s *Store) SaveDayRecords(ctx context.Context, records []recap.DayRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO day_records (day, text, mood, starred, keywords, photos, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(day) DO UPDATE SET
			text = excluded.text,
			mood = excluded.mood,
			starred = excluded.starred,
			keywords = excluded.keywords,
			photos = excluded.photos,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("storage: prepare save day: %w", err)
	}
	defer stmt.Close()

	updated := formatTime(s.now())
	for _, d := range records {
		d.Photos = append([]recap.PhotoRecord(nil), d.Photos...)
		d.Normalize()
		keywords, err := json.Marshal(nonNilStrings(d.Keywords))
		if err != nil {
			return fmt.Errorf("storage: marshal keywords: %w", err)
		}
		photos, err := json.Marshal(nonNilPhotos(d.Photos))
		if err != nil {
			return fmt.Errorf("storage: marshal photos: %w", err)
		}
		day := d.Day().Format(dayKeyLayout)
		if _, err := stmt.ExecContext(ctx, day, d.Text, string(d.Mood), boolToInt(d.Starred), string(keywords), string(photos), updated); err != nil {
			return fmt.Errorf("storage: save day %s: %w", day, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	return nil
}

// FetchDayRecords returns the records whose calendar day falls in [start, end), by date.
func (s *Store) FetchDayRecords(ctx context.Context, start, end time.Time) ([]recap.DayRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT day, text, mood, starred, keywords, photos
		 FROM day_records WHERE day >= ? AND day < ? ORDER BY day`,
		dayKey(start, false), dayKey(end, true))
	if err != nil {
		return nil, fmt.Errorf("storage: fetch day records: %w", err)
	}
	defer rows.Close()

	var out []recap.DayRecord
	for rows.Next() {
		var (
			day, text, mood, keywords, photos string
			starred                           int
		)
		if err := rows.Scan(&day, &text, &mood, &starred, &keywords, &photos); err != nil {
			return nil, fmt.Errorf("storage: scan day record: %w", err)
		}
		date, err := time.Parse(dayKeyLayout, day)
		if err != nil {
			return nil, fmt.Errorf("storage: parse day %q: %w", day, err)
		}
		d := recap.DayRecord{Date: date, Text: text, Mood: recap.Mood(mood), Starred: starred != 0}
		if err := json.Unmarshal([]byte(keywords), &d.Keywords); err != nil {
			return nil, fmt.Errorf("storage: day %s keywords: %w", day, err)
		}
		if err := json.Unmarshal([]byte(photos), &d.Photos); err != nil {
			return nil, fmt.Errorf("storage: day %s photos: %w", day, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate day records: %w", err)
	}
	return out, nil
}

func (s *Store) UpsertMonthlyPack(ctx context.Context, rec recap.MonthlyPackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO monthly_packs (year, month, stats, narrative_text, generation_method, themed_photos, topic_source, generated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(year, month) DO UPDATE SET
				stats = excluded.stats,
				narrative_text = excluded.narrative_text,
				generation_method = excluded.generation_method,
				themed_photos = excluded.themed_photos,
				topic_source = excluded.topic_source,
				generated_at = excluded.generated_at`,
			rec.Year, int(rec.Month), string(rec.Stats), rec.NarrativeText, string(rec.GenerationMethod),
			string(rec.ThemedPhotos), string(rec.TopicSource), formatTime(rec.GeneratedAt))
		if err != nil {
			return fmt.Errorf("storage: upsert monthly pack %04d-%02d: %w", rec.Year, int(rec.Month), err)
		}
		return nil
	})
}

func (s *Store) UpsertYearlySummary(ctx context.Context, rec recap.YearlySummaryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO yearly_summaries (year, stats, narrative_text, generation_method, photos, generated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(year) DO UPDATE SET
				stats = excluded.stats,
				narrative_text = excluded.narrative_text,
				generation_method = excluded.generation_method,
				photos = excluded.photos,
				generated_at = excluded.generated_at`,
			rec.Year, string(rec.Stats), rec.NarrativeText, string(rec.GenerationMethod),
			string(rec.Photos), formatTime(rec.GeneratedAt))
		if err != nil {
			return fmt.Errorf("storage: upsert yearly summary %04d: %w", rec.Year, err)
		}
		return nil
	})
}

const monthlyColumns = `year, month, stats, narrative_text, generation_method, themed_photos, topic_source, generated_at`

// MonthlyPackRecords returns the stored packs of year ordered by month. Blobs are returned
// as stored; decoding is the caller's concern.
func (s *Store) MonthlyPackRecords(ctx context.Context, year int) ([]recap.MonthlyPackRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+monthlyColumns+` FROM monthly_packs WHERE year = ? ORDER BY month`, year)
	if err != nil {
		return nil, fmt.Errorf("storage: monthly packs %04d: %w", year, err)
	}
	defer rows.Close()

	var out []recap.MonthlyPackRecord
	for rows.Next() {
		rec, err := scanMonthly(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate monthly packs: %w", err)
	}
	return out, nil
}

// MonthlyPackRecord returns one stored pack. ok is false when none exists.
func (s *Store) MonthlyPackRecord(ctx context.Context, year int, month time.Month) (rec recap.MonthlyPackRecord, ok bool, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+monthlyColumns+` FROM monthly_packs WHERE year = ? AND month = ?`, year, int(month))
	rec, err = scanMonthly(row)
	if errors.Is(err, sql.ErrNoRows) {
		return recap.MonthlyPackRecord{}, false, nil
	}
	if err != nil {
		return recap.MonthlyPackRecord{}, false, err
	}
	return rec, true, nil
}

// YearlySummaryRecord returns one stored summary. ok is false when none exists.
func (s *Store) YearlySummaryRecord(ctx context.Context, year int) (rec recap.YearlySummaryRecord, ok bool, err error) {
	var stats, narrative, method, photos, generated string
	err = s.db.QueryRowContext(ctx,
		`SELECT year, stats, narrative_text, generation_method, photos, generated_at
		 FROM yearly_summaries WHERE year = ?`, year,
	).Scan(&rec.Year, &stats, &narrative, &method, &photos, &generated)
	if errors.Is(err, sql.ErrNoRows) {
		return recap.YearlySummaryRecord{}, false, nil
	}
	if err != nil {
		return recap.YearlySummaryRecord{}, false, fmt.Errorf("storage: yearly summary %04d: %w", year, err)
	}
	rec.Stats = json.RawMessage(stats)
	rec.NarrativeText = narrative
	rec.GenerationMethod = recap.GenerationMethod(method)
	rec.Photos = json.RawMessage(photos)
	rec.GeneratedAt = parseTime(generated)
	return rec, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMonthly(row scanner) (recap.MonthlyPackRecord, error) {
	var (
		rec                                              recap.MonthlyPackRecord
		month                                            int
		stats, narrative, method, photos, src, generated string
	)
	if err := row.Scan(&rec.Year, &month, &stats, &narrative, &method, &photos, &src, &generated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("storage: scan monthly pack: %w", err)
	}
	rec.Month = time.Month(month)
	rec.Stats = json.RawMessage(stats)
	rec.NarrativeText = narrative
	rec.GenerationMethod = recap.GenerationMethod(method)
	rec.ThemedPhotos = json.RawMessage(photos)
	rec.TopicSource = recap.TopicSource(src)
	rec.GeneratedAt = parseTime(generated)
	return rec, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	return nil
}

// dayKey maps t to the day string used as a range bound. An exclusive upper bound that is
// not a midnight rounds up so the partial day stays in range.
func dayKey(t time.Time, upper bool) string {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if upper && t.After(day) {
		day = day.AddDate(0, 0, 1)
	}
	return day.Format(dayKeyLayout)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func nonNilPhotos(in []recap.PhotoRecord) []recap.PhotoRecord {
	if in == nil {
		return []recap.PhotoRecord{}
	}
	return in
}
