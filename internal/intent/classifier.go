// Package intent maps raw operator utterances to the closed set of workflow
// intents.
package intent

import (
	"regexp"
	"strings"
)

type Kind int

const (
	Freeform Kind = iota
	DocketLookup
	RequestCommit
)

func (k Kind) String() string {
	switch k {
	case DocketLookup:
		return "docket_lookup"
	case RequestCommit:
		return "request_commit"
	default:
		return "freeform"
	}
}

// Intent is the tagged result of classification. DocketID is set only for
// DocketLookup; Text always carries the original utterance.
type Intent struct {
	Kind     Kind
	DocketID string
	Text     string
}

var docketToken = regexp.MustCompile(`(?i)DKT-\d+`)

// Classify returns exactly one intent for text. A commit request wins over a
// docket lookup when both cues are present.
func Classify(text string) Intent {
	if strings.Contains(strings.ToLower(text), "update") {
		return Intent{Kind: RequestCommit, Text: text}
	}
	if id := docketToken.FindString(text); id != "" {
		return Intent{Kind: DocketLookup, DocketID: strings.ToUpper(id), Text: text}
	}
	return Intent{Kind: Freeform, Text: text}
}
