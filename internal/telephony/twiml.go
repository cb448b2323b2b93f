package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

// TwiML is a minimal Twilio Markup Language response builder.
// Only the verbs the dispatcher emits are modeled.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

type twimlDial struct {
	XMLName  xml.Name `xml:"Dial"`
	CallerID string   `xml:"callerId,attr,omitempty"`
	Number   string   `xml:",chardata"`
}

// fallbackTwiML is served when rendering itself fails.
var fallbackTwiML = xml.Header + "<Response><Say>" + PromptProcessingError + "</Say></Response>"

// RenderTwiML maps a Response to TwiML.
func RenderTwiML(res Response) (string, error) {
	var r twimlResponse

	for _, s := range res.Steps {
		switch s.Kind {
		case StepSay:
			r.Verbs = append(r.Verbs, twimlSay{Text: s.Text})
		case StepDial:
			if strings.TrimSpace(s.Number) == "" {
				return "", errors.New("telephony: number required for dial")
			}
			r.Verbs = append(r.Verbs, twimlDial{CallerID: s.CallerID, Number: s.Number})
		default:
			return "", fmt.Errorf("telephony: unknown step %q", s.Kind)
		}
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
