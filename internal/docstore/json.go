package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ReadJSON decodes the document at key into v. A missing document leaves v
// untouched and reports found=false without error.
func ReadJSON(ctx context.Context, s Store, key string, v any) (found bool, err error) {
	data, err := s.Read(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, readErr(key, fmt.Errorf("decode: %w", err))
	}
	return true, nil
}

// WriteJSON encodes v with indentation, matching the hand-editable layout the
// documents have always had.
func WriteJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return writeErr(key, fmt.Errorf("encode: %w", err))
	}
	return s.Write(ctx, key, data)
}
