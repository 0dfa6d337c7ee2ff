package fragments

import "encoding/json"

// CreateFragmentRequest contains parameters for storing new content
type CreateFragmentRequest struct {
	OwnerID string
	Type    string
	Data    []byte
}

// ReplaceFragmentRequest contains parameters for replacing the content of
// an existing fragment. Type must equal the stored fragment's type.
type ReplaceFragmentRequest struct {
	OwnerID string
	ID      string
	Type    string
	Data    []byte
}

// FragmentList is the result of ByUser. It holds either ids or full
// fragments depending on Expanded, and marshals to a JSON array of the
// populated one.
type FragmentList struct {
	Expanded  bool
	IDs       []string
	Fragments []*Fragment
}

// Len returns the number of listed fragments.
func (l *FragmentList) Len() int {
	if l.Expanded {
		return len(l.Fragments)
	}
	return len(l.IDs)
}

func (l *FragmentList) MarshalJSON() ([]byte, error) {
	if l.Expanded {
		if l.Fragments == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(l.Fragments)
	}
	if l.IDs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.IDs)
}
