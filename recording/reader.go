package recording

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
)

// QueryParams narrows a table query.
type QueryParams struct {
	// Where holds the WHERE clause without the keyword, e.g. "Step > ?".
	Where string

	// Args holds arguments for the placeholders in Where.
	Args []any

	// Limit caps the number of records returned; 0 for no limit.
	Limit int

	// Offset skips records for pagination.
	Offset int

	// OrderBy specifies sorting without the keywords, e.g. "Step DESC".
	OrderBy string
}

// A Reader reads recorded run data back.
type Reader interface {
	// MapTable binds a table to the record struct it was written with.
	// A table must be mapped before it can be queried.
	MapTable(tableName string, sampleRecord any)

	// ListTables returns the tables that have been mapped.
	ListTables() []string

	// Query reads records from a table.
	Query(ctx context.Context, tableName string, params QueryParams) (
		records []any,
		totalCount int,
		err error,
	)

	// Close closes the reader.
	Close() error
}

type sqliteReader struct {
	*sql.DB

	typeMap map[string]reflect.Type
}

// NewReader opens a recording database for reading.
func NewReader(dbFilename string) Reader {
	db, err := sql.Open("sqlite3", dbFilename)
	if err != nil {
		panic(err)
	}

	return &sqliteReader{
		DB:      db,
		typeMap: make(map[string]reflect.Type),
	}
}

// NewReaderWithDB creates a Reader over an existing database handle.
func NewReaderWithDB(db *sql.DB) Reader {
	return &sqliteReader{
		DB:      db,
		typeMap: make(map[string]reflect.Type),
	}
}

func (r *sqliteReader) MapTable(tableName string, sampleRecord any) {
	r.typeMap[tableName] = reflect.TypeOf(sampleRecord)
}

func (r *sqliteReader) ListTables() []string {
	tables := make([]string, 0, len(r.typeMap))
	for name := range r.typeMap {
		tables = append(tables, name)
	}

	return tables
}

func (r *sqliteReader) Query(
	ctx context.Context,
	tableName string,
	params QueryParams,
) ([]any, int, error) {
	structType, ok := r.typeMap[tableName]
	if !ok {
		return nil, 0, fmt.Errorf("no mapping found for table: %s", tableName)
	}

	query := fmt.Sprintf("SELECT * FROM %s", tableName)
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", tableName)

	if params.Where != "" {
		query += " WHERE " + params.Where
		countQuery += " WHERE " + params.Where
	}

	if params.OrderBy != "" {
		query += " ORDER BY " + params.OrderBy
	}

	if params.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", params.Limit, params.Offset)
	}

	var totalCount int
	err := r.QueryRowContext(ctx, countQuery, params.Args...).Scan(&totalCount)
	if err != nil {
		return nil, 0, fmt.Errorf("counting rows: %w", err)
	}

	rows, err := r.QueryContext(ctx, query, params.Args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying %s: %w", tableName, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows, structType)
	if err != nil {
		return nil, 0, err
	}

	return records, totalCount, nil
}

func scanRecords(rows *sql.Rows, structType reflect.Type) ([]any, error) {
	var records []any

	for rows.Next() {
		record := reflect.New(structType).Elem()

		fields := make([]any, structType.NumField())
		for i := range fields {
			fields[i] = record.Field(i).Addr().Interface()
		}

		if err := rows.Scan(fields...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		records = append(records, record.Interface())
	}

	return records, rows.Err()
}
