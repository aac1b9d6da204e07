package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONList is a custom type for handling JSON array columns. It implements
// sql.Scanner and driver.Valuer so positional job arguments round-trip
// through the database unchanged.
type JSONList []any

// Scan implements the sql.Scanner interface.
func (j *JSONList) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.New("unsupported type for JSONList")
	}

	if len(data) == 0 {
		*j = JSONList{}
		return nil
	}

	return json.Unmarshal(data, j)
}

// Value implements the driver.Valuer interface.
func (j JSONList) Value() (driver.Value, error) {
	if len(j) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal([]any(j))
}

// Equal compares two argument lists by their canonical JSON encoding, so a
// list decoded from the database compares equal to the same list arriving
// in a request body.
func (j JSONList) Equal(other JSONList) bool {
	a, err := json.Marshal([]any(j))
	if err != nil {
		return false
	}
	b, err := json.Marshal([]any(other))
	if err != nil {
		return false
	}
	return string(a) == string(b)
}
