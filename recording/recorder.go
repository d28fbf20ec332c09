// Package recording persists per-step run data into SQLite so results can be
// inspected and queried after the run. Tables are derived from flat record
// structs by reflection.
package recording

import (
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/fatih/structs"

	// SQLite driver for the recording database.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// A Recorder records and stores run data.
type Recorder interface {
	// CreateTable creates a table shaped after a sample record struct.
	CreateTable(tableName string, sampleRecord any)

	// InsertRecord buffers one record for a table that already exists.
	InsertRecord(tableName string, record any)

	// ListTables returns the names of all created tables.
	ListTables() []string

	// Flush writes all buffered records into the database.
	Flush()
}

// NewRecorder creates a Recorder backed by a SQLite file at the given path.
// An empty path picks a unique run-scoped name. Buffered records are flushed
// at exit.
func NewRecorder(path string) Recorder {
	w := &sqliteRecorder{
		dbName:    path,
		batchSize: 100000,
		tables:    make(map[string]*table),
	}

	w.init()

	atexit.Register(func() { w.Flush() })

	return w
}

// NewRecorderWithDB creates a Recorder over an existing database handle.
func NewRecorderWithDB(db *sql.DB) Recorder {
	w := &sqliteRecorder{
		DB:        db,
		batchSize: 100000,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() { w.Flush() })

	return w
}

type table struct {
	structType reflect.Type
	records    []any
}

type sqliteRecorder struct {
	*sql.DB
	statement *sql.Stmt

	dbName     string
	tables     map[string]*table
	batchSize  int
	numRecords int
}

func (r *sqliteRecorder) init() {
	if r.dbName == "" {
		r.dbName = "waterloop_run_" + xid.New().String()
	}

	filename := r.dbName + ".sqlite3"

	_, err := os.Stat(filename)
	if err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	fmt.Fprintf(os.Stderr, "Recording run data to: %s\n", filename)

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	r.DB = db
}

func (r *sqliteRecorder) CreateTable(tableName string, sampleRecord any) {
	if err := checkRecordFields(sampleRecord); err != nil {
		panic(err)
	}

	fields := strings.Join(structs.Names(sampleRecord), ", \n\t")
	createTableSQL := `CREATE TABLE ` + tableName +
		` (` + "\n\t" + fields + "\n" + `);`
	r.mustExecute(createTableSQL)

	r.tables[tableName] = &table{
		structType: reflect.TypeOf(sampleRecord),
		records:    []any{},
	}
}

func (r *sqliteRecorder) InsertRecord(tableName string, record any) {
	t, exists := r.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	t.records = append(t.records, record)

	r.numRecords++
	if r.numRecords >= r.batchSize {
		r.Flush()
	}
}

func (r *sqliteRecorder) ListTables() []string {
	tables := make([]string, 0, len(r.tables))
	for name := range r.tables {
		tables = append(tables, name)
	}

	return tables
}

func (r *sqliteRecorder) Flush() {
	if r.numRecords == 0 {
		return
	}

	r.mustExecute("BEGIN TRANSACTION")
	defer r.mustExecute("COMMIT TRANSACTION")

	for tableName, t := range r.tables {
		if len(t.records) == 0 {
			continue
		}

		r.prepareStatement(tableName, t.records[0])

		for _, record := range t.records {
			values := []any{}

			v := reflect.ValueOf(record)
			for i := 0; i < v.NumField(); i++ {
				values = append(values, v.Field(i).Interface())
			}

			if _, err := r.statement.Exec(values...); err != nil {
				panic(err)
			}
		}

		t.records = nil

		r.statement.Close()
		r.statement = nil
	}

	r.numRecords = 0
}

func (r *sqliteRecorder) prepareStatement(tableName string, sampleRecord any) {
	names := structs.Names(sampleRecord)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")

	insertSQL := `INSERT INTO ` + tableName +
		` (` + strings.Join(names, ", ") + `) VALUES (` + placeholders + `)`

	statement, err := r.Prepare(insertSQL)
	if err != nil {
		panic(err)
	}

	r.statement = statement
}

func (r *sqliteRecorder) mustExecute(query string) sql.Result {
	result, err := r.Exec(query)
	if err != nil {
		panic(fmt.Errorf("executing %s: %w", query, err))
	}

	return result
}

func checkRecordFields(record any) error {
	t := reflect.TypeOf(record)

	for i := 0; i < t.NumField(); i++ {
		if !isAllowedKind(t.Field(i).Type.Kind()) {
			return fmt.Errorf("field %s has unsupported kind %s",
				t.Field(i).Name, t.Field(i).Type.Kind())
		}
	}

	return nil
}

func isAllowedKind(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}
