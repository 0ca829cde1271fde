package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// JSON stores request/response shape documents as validated raw JSON.
// It implements driver.Valuer and sql.Scanner so the same column type
// works against both PostgreSQL JSONB and SQLite JSON.
type JSON json.RawMessage

// Value implements driver.Valuer for database writes.
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	var tmp interface{}
	if err := json.Unmarshal(j, &tmp); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner for database reads.
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan JSON column from %T", value)
	}

	var tmp interface{}
	if err := json.Unmarshal(raw, &tmp); err != nil {
		return fmt.Errorf("invalid JSON in database: %w", err)
	}

	*j = append((*j)[0:0], raw...)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return []byte(j), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return errors.New("JSON: UnmarshalJSON on nil pointer")
	}
	*j = append((*j)[0:0], data...)
	return nil
}

// Equal reports whether two shape documents are byte-identical after
// compaction. Used to decide whether an overwrite import needs a new
// version snapshot.
func (j JSON) Equal(other JSON) bool {
	a, err := compactJSON(j)
	if err != nil {
		return false
	}
	b, err := compactJSON(other)
	if err != nil {
		return false
	}
	return string(a) == string(b)
}

func compactJSON(j JSON) ([]byte, error) {
	if len(j) == 0 {
		return nil, nil
	}
	var tmp interface{}
	if err := json.Unmarshal(j, &tmp); err != nil {
		return nil, err
	}
	return json.Marshal(tmp)
}
