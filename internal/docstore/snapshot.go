package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Snapshot struct {
	ID   string
	Path string
	Data map[string]any
}

// Decode: JSON タグで DTO へ詰め、validate タグで必須項目を検査する。
// 欠けたフィールドを既定値で埋めることはしない
func (s Snapshot) Decode(out any) error {
	buf, err := json.Marshal(s.Data)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidDocument, s.Path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(buf))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidDocument, s.Path, err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidDocument, s.Path, err)
	}
	return nil
}

// ToDoc: DTO → 文書マップ（数値は json.Number のまま）
func ToDoc(v any) (map[string]any, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(buf))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}
