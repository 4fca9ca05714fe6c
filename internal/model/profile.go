package model

import "encoding/json"

// ResumeProfile is the read-only structured resume used as context for every
// analysis and generation call. Raw carries the full document; FullName is
// extracted up front because filenames and prompts need it.
type ResumeProfile struct {
	FullName          string
	Raw               json.RawMessage
	AdditionalDetails string
}
