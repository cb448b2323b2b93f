package telephony

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// TwilioInboundForm captures the subset of voice webhook fields we care about.
// Twilio sends application/x-www-form-urlencoded by default.
// Ref: https://www.twilio.com/docs/voice/twiml
type TwilioInboundForm struct {
	CallSid       string `json:"CallSid"`
	AccountSid    string `json:"AccountSid"`
	From          string `json:"From"`
	To            string `json:"To"`
	Direction     string `json:"Direction,omitempty"`
	CallStatus    string `json:"CallStatus,omitempty"`
	CallerName    string `json:"CallerName,omitempty"`
	FromCountry   string `json:"FromCountry,omitempty"`
	ToCountry     string `json:"ToCountry,omitempty"`
	ForwardedFrom string `json:"ForwardedFrom,omitempty"`
}

func ParseTwilioInboundCall(r *http.Request) (TwilioInboundForm, error) {
	if err := r.ParseForm(); err != nil {
		return TwilioInboundForm{}, err
	}
	f := TwilioInboundForm{
		CallSid:       r.PostFormValue("CallSid"),
		AccountSid:    r.PostFormValue("AccountSid"),
		From:          normalizePhone(r.PostFormValue("From")),
		To:            normalizePhone(r.PostFormValue("To")),
		Direction:     r.PostFormValue("Direction"),
		CallStatus:    r.PostFormValue("CallStatus"),
		CallerName:    r.PostFormValue("CallerName"),
		FromCountry:   r.PostFormValue("FromCountry"),
		ToCountry:     r.PostFormValue("ToCountry"),
		ForwardedFrom: normalizePhone(r.PostFormValue("ForwardedFrom")),
	}
	return f, nil
}

func normalizePhone(s string) string {
	// Twilio sends "anonymous" or empty for withheld numbers; keep as-is.
	return strings.TrimSpace(s)
}

func (f TwilioInboundForm) ToInboundCall(occurredAt time.Time) InboundCall {
	raw, _ := json.Marshal(f)
	return InboundCall{
		ProviderCallID: f.CallSid,
		From:           f.From,
		To:             f.To,
		OccurredAt:     occurredAt,
		RawPayload:     string(raw),
	}
}
