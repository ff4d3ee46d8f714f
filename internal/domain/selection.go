package domain

import "encoding/json"

// SelectionKind tells how a saved box relates to the candidate catalog
type SelectionKind int

const (
	EmptySelection SelectionKind = iota
	CandidateSelection
	CustomSelection
)

func (k SelectionKind) String() string {
	switch k {
	case EmptySelection:
		return "empty"
	case CandidateSelection:
		return "candidate"
	case CustomSelection:
		return "custom"
	default:
		return "unknown"
	}
}

func (k SelectionKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Selection is the resolved provenance of an annotation box.
// CategoryIndex and BoxIndex are only meaningful for CandidateSelection,
// Box only for CustomSelection.
type Selection struct {
	Kind          SelectionKind `json:"kind"`
	CategoryIndex int           `json:"category_index"`
	BoxIndex      int           `json:"box_index"`
	Box           *Box          `json:"box,omitempty"`
}
