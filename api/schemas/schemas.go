// api/schemas/schemas.go
package schemas

import (
	"time"
)

// -- Session Schemas --

// Session is the single persisted authentication record for an installation.
// Writers always replace the whole record; there are no partial updates.
type Session struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	UserEmail    string    `json:"userEmail"`
	TokenExpiry  time.Time `json:"tokenExpiry"`
}

// Valid reports whether the record holds a usable access token at all.
// Expiry handling is the session manager's job, not the record's.
func (s Session) Valid() bool {
	return s.AccessToken != ""
}

// ExpiresWithin reports whether the token expiry falls inside the lookahead
// window measured from now. A zero expiry counts as expired.
func (s Session) ExpiresWithin(now time.Time, lookahead time.Duration) bool {
	return !now.Add(lookahead).Before(s.TokenExpiry)
}

// -- Resume Catalog Schemas --

// ResumeDescriptor describes one remotely stored resume. Rebuilt from the
// catalog service on every popup open and never persisted.
type ResumeDescriptor struct {
	DisplayName string `json:"name"`
	Filename    string `json:"filename"`
	DownloadURL string `json:"downloadUrl,omitempty"`
}

// Label returns the human facing name shown in the picker.
func (r ResumeDescriptor) Label() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	if r.Filename != "" {
		return r.Filename
	}
	return "Resume"
}

// -- Messaging Schemas --

// Action discriminates messages on the context bus.
type Action string

const (
	ActionUpload        Action = "upload"
	ActionFetchResume   Action = "fetch-resume"
	ActionFieldDetected Action = "file-input-detected"
)

// UploadCommand is sent popup -> content script to start one injection.
type UploadCommand struct {
	Action      Action `json:"action"`
	DownloadURL string `json:"downloadUrl"`
	Token       string `json:"token,omitempty"`
}

// FetchResumeRequest is sent content script -> background to proxy a fetch
// the page itself is not allowed to perform.
type FetchResumeRequest struct {
	Action      Action `json:"action"`
	DownloadURL string `json:"downloadUrl"`
	Token       string `json:"token,omitempty"`
}

// FetchResumeResponse answers a FetchResumeRequest.
type FetchResumeResponse struct {
	OK       bool              `json:"ok"`
	Envelope *TransferEnvelope `json:"envelope,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// FieldDetectedReport is pushed content script -> background when a late
// appearing upload control is observed. Sent at most once per page load.
type FieldDetectedReport struct {
	Action Action `json:"action"`
	TabID  string `json:"tabId,omitempty"`
}

// UploadResult answers an UploadCommand.
type UploadResult struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

// -- Injection Schemas --

// InjectionOutcome names the path the injector ended up taking.
type InjectionOutcome string

const (
	OutcomeAttached  InjectionOutcome = "attached"  // file assigned to an upload control
	OutcomePasted    InjectionOutcome = "pasted"    // text fallback into an editable target
	OutcomePresented InjectionOutcome = "presented" // handed over for manual handling
)

// InjectionResult reports what the injector did with one envelope.
type InjectionResult struct {
	Outcome    InjectionOutcome `json:"outcome"`
	TargetID   string           `json:"targetId,omitempty"`
	Filename   string           `json:"filename,omitempty"`
	MediaType  string           `json:"mediaType,omitempty"`
	EventsSent []string         `json:"eventsSent,omitempty"`
}
