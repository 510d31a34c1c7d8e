package repository

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// jsonColumn stores a value as JSON text (json or jsonb on postgres). A nil Val is
// written as SQL NULL.
type jsonColumn[T any] struct {
	Val *T
}

func newJSONColumn[T any](v *T) jsonColumn[T] {
	return jsonColumn[T]{Val: v}
}

func (c jsonColumn[T]) Value() (driver.Value, error) {
	if c.Val == nil {
		return nil, nil
	}
	b, err := json.Marshal(c.Val)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (c *jsonColumn[T]) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		c.Val = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("jsonColumn: unsupported source type %T", src)
	}
	if len(raw) == 0 || string(raw) == "null" {
		c.Val = nil
		return nil
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	c.Val = &out
	return nil
}
