package query

import "fmt"

// ListParams is a paginated list request. PageSize <= 0 means unlimited, in
// which case PageIndex is ignored.
type ListParams struct {
	Filters   Filters   `json:"filters"`
	PageIndex int       `json:"pageIndex"`
	PageSize  int       `json:"pageSize"`
	Sort      []SortKey `json:"sort,omitempty"`
}

// Limit returns the LIMIT/OFFSET pair, or ok=false when unlimited.
func (p ListParams) Limit() (limit, offset uint64, ok bool) {
	if p.PageSize <= 0 {
		return 0, 0, false
	}
	idx := max(p.PageIndex, 0)
	return uint64(p.PageSize), uint64(idx) * uint64(p.PageSize), true
}

// PayloadMode selects which response documents a record stream projects.
type PayloadMode string

const (
	PayloadBoth                 PayloadMode = "both"
	PayloadOriginal             PayloadMode = "original"
	PayloadCorrected            PayloadMode = "corrected"
	PayloadCorrectedIfAvailable PayloadMode = "correctedIfAvailable"
	PayloadNone                 PayloadMode = "none"
)

// ParsePayloadMode accepts the mode names plus "participant" as an alias of
// original. Empty means both.
func ParsePayloadMode(s string) (PayloadMode, error) {
	switch s {
	case "", string(PayloadBoth):
		return PayloadBoth, nil
	case string(PayloadOriginal), "participant":
		return PayloadOriginal, nil
	case string(PayloadCorrected):
		return PayloadCorrected, nil
	case string(PayloadCorrectedIfAvailable):
		return PayloadCorrectedIfAvailable, nil
	case string(PayloadNone):
		return PayloadNone, nil
	}
	return "", fmt.Errorf("unknown payload mode %q", s)
}

// Selection toggles the optional parts of a record stream row.
type Selection struct {
	IncludeAudits          *bool       `json:"includeAudits,omitempty"`
	IncludeInterviewerData bool        `json:"includeInterviewerData,omitempty"`
	Payload                PayloadMode `json:"payload,omitempty"`
}

// Audits reports whether audits are projected. The default is true.
func (s Selection) Audits() bool {
	return s.IncludeAudits == nil || *s.IncludeAudits
}

// StreamParams is a record stream request.
type StreamParams struct {
	Filters Filters   `json:"filters"`
	Select  Selection `json:"select"`
	Sort    []SortKey `json:"sort,omitempty"`
}

// LogStreamParams is an edit-log stream request.
type LogStreamParams struct {
	InterviewID   *int64  `json:"interviewId,omitempty"`
	ForCorrection *bool   `json:"forCorrection,omitempty"`
	Filters       Filters `json:"filters,omitempty"`
}
