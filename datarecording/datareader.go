package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sort"
)

// QueryParams narrows down a query.
type QueryParams struct {
	// Where holds the WHERE clause without the "WHERE" keyword.
	Where string

	// Args holds the arguments for the placeholders in Where.
	Args []any

	// OrderBy specifies sorting, without the "ORDER BY" keywords.
	OrderBy string

	// Limit is the maximum number of records to return. Zero means no limit.
	Limit int
}

// Reader reads back tables written by a DataRecorder.
type Reader struct {
	*sql.DB

	typeMap map[string]reflect.Type
}

// NewReader opens the database file for reading.
func NewReader(filename string) (*Reader, error) {
	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, err
	}

	return NewReaderWithDB(db), nil
}

// NewReaderWithDB creates a Reader on an opened database.
func NewReaderWithDB(db *sql.DB) *Reader {
	return &Reader{
		DB:      db,
		typeMap: make(map[string]reflect.Type),
	}
}

// MapTable binds a table to the struct type of its rows.
func (r *Reader) MapTable(tableName string, sampleEntry any) {
	r.typeMap[tableName] = reflect.TypeOf(sampleEntry)
}

// ListTables returns the names of the mapped tables.
func (r *Reader) ListTables() []string {
	names := make([]string, 0, len(r.typeMap))
	for name := range r.typeMap {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Query returns the matching rows of a mapped table, each as a pointer to a
// new struct of the mapped type.
func (r *Reader) Query(
	ctx context.Context,
	tableName string,
	params QueryParams,
) ([]any, error) {
	structType, ok := r.typeMap[tableName]
	if !ok {
		return nil, fmt.Errorf("no mapping found for table: %s", tableName)
	}

	query := "SELECT * FROM " + tableName

	if params.Where != "" {
		query += " WHERE " + params.Where
	}

	if params.OrderBy != "" {
		query += " ORDER BY " + params.OrderBy
	}

	if params.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", params.Limit)
	}

	rows, err := r.QueryContext(ctx, query, params.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRows(rows, structType)
}

func scanRows(rows *sql.Rows, structType reflect.Type) ([]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	fieldMap := make(map[string]int)
	for i := 0; i < structType.NumField(); i++ {
		fieldMap[structType.Field(i).Name] = i
	}

	var results []any

	for rows.Next() {
		structPtr := reflect.New(structType)
		structVal := structPtr.Elem()
		targets := make([]any, len(columns))

		for i, col := range columns {
			if idx, ok := fieldMap[col]; ok {
				targets[i] = structVal.Field(idx).Addr().Interface()
			} else {
				var placeholder any
				targets[i] = &placeholder
			}
		}

		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		results = append(results, structPtr.Interface())
	}

	return results, rows.Err()
}
