package compose

import (
	"strings"

	"github.com/freddiequinson/kountryeye-console/internal/reftoken"
)

// Phase is the mention trigger phase.
type Phase int

const (
	// PhaseIdle means no active trigger at the cursor.
	PhaseIdle Phase = iota
	// PhaseTypeSelecting means a bare '@' with no further text: the
	// fixed entity-type list is shown.
	PhaseTypeSelecting
	// PhaseSearching means a recognized prefix or shorthand; the rest
	// of the trigger is the live search query.
	PhaseSearching
)

// MentionState is the tagged state of the mention trigger. TriggerStart
// is the offset of the '@'; Type and Query are set in PhaseSearching.
type MentionState struct {
	Phase        Phase
	TriggerStart int
	Type         string
	Query        string
}

// typeHeads maps full prefixes and shorthands to entity types.
var typeHeads = map[string]string{
	"p": reftoken.Product, "product": reftoken.Product,
	"f": reftoken.FundRequest, "fund": reftoken.FundRequest,
	"v": reftoken.Visit, "visit": reftoken.Visit,
	"pat": reftoken.Patient, "patient": reftoken.Patient,
	"u": reftoken.User, "user": reftoken.User,
}

// TypeOption is one entry of the type-selection dropdown.
type TypeOption struct {
	Type   string
	Prefix string
	Label  string
}

// TypeOptions returns the fixed entity-type list with canonical
// prefixes, in display order.
func TypeOptions() []TypeOption {
	return []TypeOption{
		{Type: reftoken.Product, Prefix: "product:", Label: "Product"},
		{Type: reftoken.FundRequest, Prefix: "fund:", Label: "Fund request"},
		{Type: reftoken.Visit, Prefix: "visit:", Label: "Visit"},
		{Type: reftoken.Patient, Prefix: "patient:", Label: "Patient"},
		{Type: reftoken.User, Prefix: "user:", Label: "Staff user"},
	}
}

// DetectMention computes the mention state from the raw input text and
// cursor offset. Pure function: the token boundary is the nearest '@'
// before the cursor (or start of string).
func DetectMention(text string, cursor int) MentionState {
	if cursor > len(text) {
		cursor = len(text)
	}
	if cursor < 0 {
		cursor = 0
	}

	at := strings.LastIndexByte(text[:cursor], '@')
	if at < 0 {
		return MentionState{Phase: PhaseIdle}
	}

	body := text[at+1 : cursor]
	if body == "" {
		return MentionState{Phase: PhaseTypeSelecting, TriggerStart: at}
	}

	if head, query, found := strings.Cut(body, ":"); found {
		if t, ok := typeHeads[strings.ToLower(head)]; ok {
			return MentionState{Phase: PhaseSearching, TriggerStart: at, Type: t, Query: query}
		}
		return MentionState{Phase: PhaseIdle}
	}

	if t, ok := typeHeads[strings.ToLower(body)]; ok {
		return MentionState{Phase: PhaseSearching, TriggerStart: at, Type: t}
	}

	// Anything else after '@' is literal text.
	return MentionState{Phase: PhaseIdle}
}
