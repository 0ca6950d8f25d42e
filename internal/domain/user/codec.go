package user

import (
	"encoding/json"
	"fmt"
)

// Decode reads a profile from JSON, picking the variant from the "role" field.
func Decode(raw []byte) (Profile, error) {
	var head struct {
		Role Role `json:"role"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}

	switch head.Role {
	case RoleStudent:
		var s Student
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return &s, nil
	case RoleTeacher:
		var t Teacher
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, err
		}
		if t.Subjects == nil {
			t.Subjects = []string{}
		}
		if t.Reviews == nil {
			t.Reviews = []Review{}
		}
		return &t, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, head.Role)
	}
}

// DecodeList reads a JSON array of profiles.
func DecodeList(raw []byte) ([]Profile, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}

	out := make([]Profile, 0, len(items))
	for _, item := range items {
		p, err := Decode(item)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
