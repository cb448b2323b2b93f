package telephony

import (
	"context"
	"time"
)

// CallAllocator decides what the caller hears and where the call goes.
//
// Rules:
// - Implementations always return a playable Response, even on failure.
// - No provider-specific types cross this boundary.
type CallAllocator interface {
	HandleInboundCall(ctx context.Context, call InboundCall) Response
}

// InboundCall is a provider-agnostic inbound call event.
type InboundCall struct {
	// ProviderCallID is the provider's unique identifier for this call.
	ProviderCallID string `json:"provider_call_id"`

	// From is the caller, To the dialed number. E.164 where possible.
	From string `json:"from"`
	To   string `json:"to"`

	OccurredAt time.Time `json:"occurred_at"`

	// RawPayload is optional, kept for debugging.
	RawPayload string `json:"raw_payload,omitempty"`
}

// Response is an ordered list of call-control steps.
type Response struct {
	Steps []Step `json:"steps"`
}

type StepKind string

const (
	StepSay  StepKind = "say"
	StepDial StepKind = "dial"
)

// Step is one verb. Text applies to say; Number and CallerID to dial.
type Step struct {
	Kind     StepKind `json:"kind"`
	Text     string   `json:"text,omitempty"`
	Number   string   `json:"number,omitempty"`
	CallerID string   `json:"caller_id,omitempty"`
}

// Say appends a spoken message.
func (r Response) Say(text string) Response {
	r.Steps = append(r.Steps, Step{Kind: StepSay, Text: text})
	return r
}

// Dial appends a bridge to number presenting callerID.
func (r Response) Dial(number, callerID string) Response {
	r.Steps = append(r.Steps, Step{Kind: StepDial, Number: number, CallerID: callerID})
	return r
}

// Dials reports whether the response forwards the call.
func (r Response) Dials() bool {
	for _, s := range r.Steps {
		if s.Kind == StepDial {
			return true
		}
	}
	return false
}

// SayResponse is a response that only speaks text.
func SayResponse(text string) Response {
	return Response{}.Say(text)
}
