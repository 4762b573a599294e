package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/structs"
)

// Filter narrows the rows a query returns. Where and OrderBy are SQL
// fragments without their keywords, such as "Latency > ?" and
// "Latency DESC". A zero Limit returns every row.
type Filter struct {
	Where   string
	Args    []any
	OrderBy string
	Limit   int
	Offset  int
}

func (f Filter) where() string {
	if f.Where == "" {
		return ""
	}

	return " WHERE " + f.Where
}

func (f Filter) tail() string {
	var sb strings.Builder

	if f.OrderBy != "" {
		sb.WriteString(" ORDER BY " + f.OrderBy)
	}

	if f.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d OFFSET %d", f.Limit, f.Offset)
	}

	return sb.String()
}

// Reader reads back a recording written by an SQLiteWriter.
type Reader struct {
	db     *sql.DB
	tables map[string]reflect.Type
}

// NewReader opens a recording file read-only. The file must exist.
func NewReader(filename string) (*Reader, error) {
	if _, err := os.Stat(filename); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", "file:"+filename+"?mode=ro")
	if err != nil {
		return nil, err
	}

	return NewReaderWithDB(db), nil
}

// NewReaderWithDB reads from an open database.
func NewReaderWithDB(db *sql.DB) *Reader {
	return &Reader{
		db:     db,
		tables: make(map[string]reflect.Type),
	}
}

// MapTable declares the entry type of a table. Query only reads mapped
// tables.
func (r *Reader) MapTable(tableName string, sampleEntry any) {
	entryMustBeFlat(sampleEntry)

	r.tables[tableName] = reflect.TypeOf(sampleEntry)
}

// Tables returns the mapped tables in name order.
func (r *Reader) Tables() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Count returns the number of rows of a table that pass the filter. Order
// and paging are ignored.
func (r *Reader) Count(ctx context.Context, tableName string, f Filter) (
	int, error,
) {
	var n int

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+tableName+f.where(), f.Args...).Scan(&n)

	return n, err
}

// Query returns pointers to the entries that pass the filter, together with
// the number of matching rows before paging.
func (r *Reader) Query(ctx context.Context, tableName string, f Filter) (
	[]any, int, error,
) {
	entryType, ok := r.tables[tableName]
	if !ok {
		return nil, 0, fmt.Errorf("table %s is not mapped", tableName)
	}

	total, err := r.Count(ctx, tableName, f)
	if err != nil {
		return nil, 0, err
	}

	columns := structs.Names(reflect.New(entryType).Elem().Interface())

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+strings.Join(columns, ", ")+" FROM "+tableName+
			f.where()+f.tail(),
		f.Args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []any

	for rows.Next() {
		entry := reflect.New(entryType)
		targets := make([]any, len(columns))

		for i, c := range columns {
			targets[i] = entry.Elem().FieldByName(c).Addr().Interface()
		}

		if err := rows.Scan(targets...); err != nil {
			return nil, 0, err
		}

		entries = append(entries, entry.Interface())
	}

	return entries, total, rows.Err()
}

// Rows maps a table to T and returns the entries that pass the filter.
func Rows[T any](ctx context.Context, r *Reader, tableName string, f Filter) (
	[]T, int, error,
) {
	var sample T
	r.MapTable(tableName, sample)

	entries, total, err := r.Query(ctx, tableName, f)
	if err != nil {
		return nil, 0, err
	}

	out := make([]T, len(entries))
	for i, e := range entries {
		out[i] = *e.(*T)
	}

	return out, total, nil
}

// BridgeSummary aggregates what a recording holds about one bridge.
type BridgeSummary struct {
	Bridge     string
	Completed  int
	Rejected   int
	AvgLatency float64
	MaxLatency int64

	// Final is nil if the bridge was never finalized.
	Final *FinalizeEntry
}

// Summarize aggregates the tables of a RequestRecorder per bridge. The
// summaries are ordered by bridge name.
func (r *Reader) Summarize(ctx context.Context) ([]BridgeSummary, error) {
	byName := make(map[string]*BridgeSummary)
	get := func(name string) *BridgeSummary {
		s, ok := byName[name]
		if !ok {
			s = &BridgeSummary{Bridge: name}
			byName[name] = s
		}

		return s
	}

	err := r.each(ctx,
		"SELECT Bridge, COUNT(*), AVG(Latency), MAX(Latency) FROM "+
			RequestTable+" GROUP BY Bridge",
		func(rows *sql.Rows) error {
			var name string

			s := BridgeSummary{}
			err := rows.Scan(&name, &s.Completed, &s.AvgLatency, &s.MaxLatency)
			if err != nil {
				return err
			}

			s.Bridge = name
			*get(name) = s

			return nil
		})
	if err != nil {
		return nil, err
	}

	err = r.each(ctx,
		"SELECT Bridge, COUNT(*) FROM "+RejectTable+" GROUP BY Bridge",
		func(rows *sql.Rows) error {
			var name string
			var n int

			if err := rows.Scan(&name, &n); err != nil {
				return err
			}

			get(name).Rejected = n

			return nil
		})
	if err != nil {
		return nil, err
	}

	finals, _, err := Rows[FinalizeEntry](ctx, r, FinalizeTable, Filter{})
	if err != nil {
		return nil, err
	}

	for i := range finals {
		get(finals[i].Bridge).Final = &finals[i]
	}

	summaries := make([]BridgeSummary, 0, len(byName))
	for _, s := range byName {
		summaries = append(summaries, *s)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Bridge < summaries[j].Bridge
	})

	return summaries, nil
}

func (r *Reader) each(
	ctx context.Context,
	query string,
	fn func(*sql.Rows) error,
) error {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}

	return rows.Err()
}

// Close closes the database.
func (r *Reader) Close() error {
	return r.db.Close()
}
