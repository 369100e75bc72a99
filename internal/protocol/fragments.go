package protocol

import (
	"bytes"
	"encoding/json"
	"strings"

	apperrors "github.com/homectlx/panel/internal/errors"
)

// NotificationKey is the reserved fragment id whose markup is appended to
// the document body instead of replacing a region.
const NotificationKey = "_error"

// Fragment is the replacement markup for one region.
type Fragment struct {
	ID     string
	Markup string
}

// IsNotification reports whether the fragment uses the reserved key.
func (f Fragment) IsNotification() bool { return f.ID == NotificationKey }

// FragmentSet is a response payload in the order the server wrote it.
type FragmentSet []Fragment

// IDs returns the region ids in order.
func (s FragmentSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for _, f := range s {
		ids = append(ids, f.ID)
	}
	return ids
}

// Get returns the markup for id.
func (s FragmentSet) Get(id string) (string, bool) {
	for _, f := range s {
		if f.ID == id {
			return f.Markup, true
		}
	}
	return "", false
}

// UnmarshalJSON decodes an object of id → markup. Null values are skipped;
// a later duplicate id replaces the earlier one in place.
func (s *FragmentSet) UnmarshalJSON(data []byte) error {
	var out FragmentSet
	index := make(map[string]int)
	err := decodeObject(data, func(key string, raw json.RawMessage) error {
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return nil
		}
		var markup string
		if err := json.Unmarshal(raw, &markup); err != nil {
			return apperrors.Wrap(apperrors.CodeProtocolInvalidFragmentSet, "fragment "+key+" is not a string", err)
		}
		if i, ok := index[key]; ok {
			out[i].Markup = markup
			return nil
		}
		index[key] = len(out)
		out = append(out, Fragment{ID: key, Markup: markup})
		return nil
	})
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeProtocolInvalidFragmentSet) {
			return err
		}
		return apperrors.Wrap(apperrors.CodeProtocolInvalidFragmentSet, "response payload is not an object", err)
	}
	*s = out
	return nil
}

// MarshalJSON encodes the set as an object in order.
func (s FragmentSet) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		k, _ := json.Marshal(f.ID)
		v, _ := json.Marshal(f.Markup)
		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// DecodeResponse decodes a response payload.
func DecodeResponse(payload json.RawMessage) (FragmentSet, error) {
	var set FragmentSet
	if err := json.Unmarshal(payload, &set); err != nil {
		return nil, err
	}
	return set, nil
}
