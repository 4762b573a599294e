package datarecording

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/fatih/structs"
	"github.com/sirupsen/logrus"
	"github.com/tebeka/atexit"
)

// ClickHouseOptions tells where a ClickHouseWriter connects to.
type ClickHouseOptions struct {
	Addr      string
	Database  string
	Username  string
	Password  string
	BatchSize int
}

// ClickHouseWriter is the DataRecorder that writes into a ClickHouse
// server. Tables use the MergeTree engine and are created if missing, so
// several runs can record into the same database.
type ClickHouseWriter struct {
	conn clickhouse.Conn
	mu   sync.Mutex

	tables     map[string]*table
	batchSize  int
	entryCount int
}

// NewClickHouseWriter connects to the server and checks that it answers.
// The writer is flushed when the program exits through atexit.
func NewClickHouseWriter(opts ClickHouseOptions) (*ClickHouseWriter, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:      30 * time.Second,
		MaxOpenConns:     5,
		MaxIdleConns:     5,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
	})
	if err != nil {
		return nil, fmt.Errorf("datarecording: cannot open ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("datarecording: cannot reach ClickHouse at %s: %w",
			opts.Addr, err)
	}

	logrus.WithField("addr", opts.Addr).
		WithField("database", opts.Database).
		Info("recording to ClickHouse")

	w := NewClickHouseWriterWithConn(conn, opts.BatchSize)
	atexit.Register(func() { w.Flush() })

	return w, nil
}

// NewClickHouseWriterWithConn creates a writer over an open connection.
func NewClickHouseWriterWithConn(
	conn clickhouse.Conn,
	batchSize int,
) *ClickHouseWriter {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &ClickHouseWriter{
		conn:      conn,
		tables:    make(map[string]*table),
		batchSize: batchSize,
	}
}

var clickHouseTypes = map[reflect.Kind]string{
	reflect.Bool:    "Bool",
	reflect.Int:     "Int64",
	reflect.Int8:    "Int8",
	reflect.Int16:   "Int16",
	reflect.Int32:   "Int32",
	reflect.Int64:   "Int64",
	reflect.Uint:    "UInt64",
	reflect.Uint8:   "UInt8",
	reflect.Uint16:  "UInt16",
	reflect.Uint32:  "UInt32",
	reflect.Uint64:  "UInt64",
	reflect.Float32: "Float32",
	reflect.Float64: "Float64",
	reflect.String:  "String",
}

// createTableSQL returns the statement that creates a table for entries of
// the type of the sample.
func createTableSQL(tableName string, sampleEntry any) string {
	entryMustBeFlat(sampleEntry)

	t := reflect.TypeOf(sampleEntry)
	columns := make([]string, 0, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		columns = append(columns, f.Name+" "+clickHouseTypes[f.Type.Kind()])
	}

	return "CREATE TABLE IF NOT EXISTS " + tableName + " (\n\t" +
		strings.Join(columns, ",\n\t") +
		"\n) ENGINE = MergeTree()\nORDER BY tuple()"
}

// columnValues returns the field values of an entry, widening int and uint
// to the 64 bit types the columns use.
func columnValues(entry any) []any {
	values := structs.Values(entry)

	for i, v := range values {
		switch v := v.(type) {
		case int:
			values[i] = int64(v)
		case uint:
			values[i] = uint64(v)
		}
	}

	return values
}

// CreateTable creates a table for entries of the type of the sample entry.
func (w *ClickHouseWriter) CreateTable(tableName string, sampleEntry any) {
	w.mu.Lock()
	defer w.mu.Unlock()

	query := createTableSQL(tableName, sampleEntry)

	if err := w.conn.Exec(context.Background(), query); err != nil {
		panic(fmt.Errorf("failed to create table %s: %w", tableName, err))
	}

	w.tables[tableName] = &table{structType: reflect.TypeOf(sampleEntry)}
}

// InsertData buffers an entry. It flushes when the batch is full.
func (w *ClickHouseWriter) InsertData(tableName string, entry any) {
	w.mu.Lock()

	table, exists := w.tables[tableName]
	if !exists {
		w.mu.Unlock()
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != table.structType {
		w.mu.Unlock()
		panic(fmt.Sprintf("entry of type %T does not fit table %s",
			entry, tableName))
	}

	table.entries = append(table.entries, entry)
	w.entryCount++
	full := w.entryCount >= w.batchSize

	w.mu.Unlock()

	if full {
		w.Flush()
	}
}

// ListTables returns the names of the tables created by the writer.
func (w *ClickHouseWriter) ListTables() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	names := make([]string, 0, len(w.tables))
	for name := range w.tables {
		names = append(names, name)
	}

	return names
}

// Flush sends every buffered entry, one batch per table.
func (w *ClickHouseWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.entryCount == 0 {
		return
	}

	ctx := context.Background()

	for name, t := range w.tables {
		if len(t.entries) == 0 {
			continue
		}

		w.flushTable(ctx, name, t)
	}

	w.entryCount = 0
}

func (w *ClickHouseWriter) flushTable(
	ctx context.Context,
	name string,
	t *table,
) {
	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO "+name)
	if err != nil {
		panic(fmt.Errorf("failed to prepare batch for %s: %w", name, err))
	}

	for _, entry := range t.entries {
		if err := batch.Append(columnValues(entry)...); err != nil {
			panic(fmt.Errorf("failed to append to batch: %w", err))
		}
	}

	if err := batch.Send(); err != nil {
		panic(fmt.Errorf("failed to send batch: %w", err))
	}

	t.entries = t.entries[:0]
}

// Close flushes remaining data and closes the connection.
func (w *ClickHouseWriter) Close() error {
	w.Flush()

	if err := w.conn.Close(); err != nil {
		return fmt.Errorf("failed to close ClickHouse connection: %w", err)
	}

	return nil
}
