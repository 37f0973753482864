// Package record defines the text records that flow through a run: the raw
// records captured from the queue and the validated records produced by the
// gate engine.
package record

import (
	"time"
	"unicode/utf8"
)

// Source is where a record was captured from.
type Source string

const (
	SourceWeb  Source = "web"
	SourceDoc  Source = "doc"
	SourceCode Source = "code"
)

// Domain is the content domain of a record.
type Domain string

const (
	DomainNews   Domain = "news"
	DomainCode   Domain = "code"
	DomainSocial Domain = "social"
	DomainDocs   Domain = "docs"
)

// Category is the topical category of a record.
type Category string

const (
	CategoryAI        Category = "ai"
	CategoryFinance   Category = "finance"
	CategoryHealth    Category = "health"
	CategoryEducation Category = "education"
)

// Status is the gate verdict for a record.
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// FailureReason is why a record was rejected. The set is closed.
type FailureReason string

const (
	ReasonTooShort   FailureReason = "too_short"
	ReasonTooLong    FailureReason = "too_long"
	ReasonNonEnglish FailureReason = "non_english"
	ReasonProfanity  FailureReason = "profanity"
	ReasonDuplicate  FailureReason = "duplicate"
)

// Reasons lists every failure reason in gate order.
var Reasons = []FailureReason{
	ReasonTooShort,
	ReasonTooLong,
	ReasonNonEnglish,
	ReasonProfanity,
	ReasonDuplicate,
}

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceWeb, SourceDoc, SourceCode:
		return true
	}
	return false
}

// Valid reports whether d is one of the known domains.
func (d Domain) Valid() bool {
	switch d {
	case DomainNews, DomainCode, DomainSocial, DomainDocs:
		return true
	}
	return false
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryAI, CategoryFinance, CategoryHealth, CategoryEducation:
		return true
	}
	return false
}

// Valid reports whether r is one of the known failure reasons.
func (r FailureReason) Valid() bool {
	for _, known := range Reasons {
		if r == known {
			return true
		}
	}
	return false
}

// Raw is a record as captured from the queue. It is never mutated after
// capture; the gate engine copies it into a Validated record.
type Raw struct {
	ID       string    `json:"id"`
	IngestTS time.Time `json:"ingest_ts"`
	Text     string    `json:"text"`
	Source   Source    `json:"source"`
	Domain   Domain    `json:"domain"`
	Category Category  `json:"category"`
	// IngestTSText is the capture time exactly as the message carried it,
	// empty when the message had none.
	IngestTSText string `json:"ingest_ts_text,omitempty"`
}

// TextLen is the character count of the raw text, without normalization.
func (r Raw) TextLen() int {
	return utf8.RuneCountInString(r.Text)
}

// Validated is a raw record plus its gate verdict.
type Validated struct {
	Raw
	TextLen       int            `json:"text_len"`
	Status        Status         `json:"status"`
	FailureReason *FailureReason `json:"failure_reason"`
}

// Accept builds the accepted verdict for r.
func Accept(r Raw) Validated {
	return Validated{Raw: r, TextLen: r.TextLen(), Status: StatusAccepted}
}

// Reject builds the rejected verdict for r with the given reason.
func Reject(r Raw, reason FailureReason) Validated {
	return Validated{Raw: r, TextLen: r.TextLen(), Status: StatusRejected, FailureReason: &reason}
}

// Accepted reports whether the record passed every gate.
func (v Validated) Accepted() bool {
	return v.Status == StatusAccepted
}

// Reason returns the failure reason, or "" for accepted records.
func (v Validated) Reason() FailureReason {
	if v.FailureReason == nil {
		return ""
	}
	return *v.FailureReason
}

// Partition splits validated records into accepted and rejected, keeping order.
func Partition(validated []Validated) (accepted, rejected []Validated) {
	accepted = make([]Validated, 0, len(validated))
	rejected = make([]Validated, 0)
	for _, v := range validated {
		if v.Accepted() {
			accepted = append(accepted, v)
		} else {
			rejected = append(rejected, v)
		}
	}
	return accepted, rejected
}

// Day returns the UTC calendar day of the record's capture time (YYYY-MM-DD).
func (r Raw) Day() string {
	return r.IngestTS.UTC().Format("2006-01-02")
}
