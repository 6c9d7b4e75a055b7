// Package reftoken implements the inline reference grammar embedded in
// message content: `[@type:id:name]` entity tokens and the `[gif:url]`
// media token.
package reftoken

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Entity types that can be referenced from a message.
const (
	Product     = "product"
	FundRequest = "fund-request"
	Visit       = "visit"
	Patient     = "patient"
	User        = "user"
)

// Ref is one entity reference. Name must not contain ']': the grammar
// has no escaping, so a ']' in a name truncates the token on decode.
type Ref struct {
	Type string
	ID   int64
	Name string
}

// Segment is one piece of decoded message content: either plain text
// (Ref nil) or an entity reference.
type Segment struct {
	Text string
	Ref  *Ref
}

var (
	refPattern     = regexp.MustCompile(`\[@([\w-]+):(\d+):([^\]]*)\]`)
	gifPattern     = regexp.MustCompile(`^\[gif:(.+)\]$`)
	cardPattern    = regexp.MustCompile(`^\[@(product|user):(\d+):([^\]]*)\]$`)
	bracketCleaner = strings.NewReplacer("[", "", "]", "")
)

// SanitizeName strips the bracket characters the grammar cannot carry.
// Applied when staging an attachment, so everything we emit survives a
// round trip.
func SanitizeName(name string) string {
	return bracketCleaner.Replace(name)
}

// Encode serializes refs as space-joined tokens in order.
func Encode(refs []Ref) string {
	var b strings.Builder
	for i, r := range refs {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "[@%s:%d:%s]", r.Type, r.ID, r.Name)
	}
	return b.String()
}

// Append builds outgoing message content: trimmed free text, then the
// serialized tokens. Either part may be empty.
func Append(text string, refs []Ref) string {
	text = strings.TrimSpace(text)
	if len(refs) == 0 {
		return text
	}
	tokens := Encode(refs)
	if text == "" {
		return tokens
	}
	return text + " " + tokens
}

// Decode returns all references in content, in order of appearance.
func Decode(content string) []Ref {
	matches := refPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	refs := make([]Ref, 0, len(matches))
	for _, m := range matches {
		id, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			continue
		}
		refs = append(refs, Ref{Type: m[1], ID: id, Name: m[3]})
	}
	return refs
}

// GifURL reports whether content, trimmed, is exactly a gif token, and
// returns the embedded URL.
func GifURL(content string) (string, bool) {
	m := gifPattern.FindStringSubmatch(strings.TrimSpace(content))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// SingleCard reports whether content, trimmed, is exactly one product
// or user token and nothing else. Such messages render as a rich
// preview card instead of the generic inline reference.
func SingleCard(content string) (*Ref, bool) {
	m := cardPattern.FindStringSubmatch(strings.TrimSpace(content))
	if m == nil {
		return nil, false
	}
	id, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return nil, false
	}
	return &Ref{Type: m[1], ID: id, Name: m[3]}, true
}

// Segments scans content left to right and splits it into plain-text
// and reference segments, preserving source order. Text runs that are
// pure whitespace between two references are dropped; content with no
// references comes back as a single plain segment.
func Segments(content string) []Segment {
	locs := refPattern.FindAllStringSubmatchIndex(content, -1)
	if len(locs) == 0 {
		return []Segment{{Text: content}}
	}

	var segs []Segment
	prev := 0
	for i, loc := range locs {
		if gap := content[prev:loc[0]]; gap != "" {
			between := i > 0 && strings.TrimSpace(gap) == ""
			if !between {
				segs = append(segs, Segment{Text: gap})
			}
		}

		id, err := strconv.ParseInt(content[loc[4]:loc[5]], 10, 64)
		if err == nil {
			segs = append(segs, Segment{Ref: &Ref{
				Type: content[loc[2]:loc[3]],
				ID:   id,
				Name: content[loc[6]:loc[7]],
			}})
		}
		prev = loc[1]
	}
	if tail := content[prev:]; tail != "" && strings.TrimSpace(tail) != "" {
		segs = append(segs, Segment{Text: tail})
	}
	return segs
}
