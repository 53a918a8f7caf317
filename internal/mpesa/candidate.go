package mpesa

import (
	"encoding/json"
	"fmt"
	"time"

	"harambee/internal/core"
)

// UnknownPayerLabel is what an unresolved payer name displays as.
const UnknownPayerLabel = "Unknown"

// PayerName is either a name extracted from the message or the unknown
// sentinel. Callers must check Known before committing a candidate.
type PayerName struct {
	name  string
	known bool
}

func KnownPayer(name string) PayerName { return PayerName{name: name, known: true} }

func UnknownPayer() PayerName { return PayerName{} }

// Value returns the extracted name and whether one was found.
func (p PayerName) Value() (string, bool) { return p.name, p.known }

func (p PayerName) Known() bool { return p.known }

func (p PayerName) String() string {
	if !p.known {
		return UnknownPayerLabel
	}
	return p.name
}

// Reference is the transaction code from the message or, when the message
// carried none, a display-only synthetic code. Synthetic references are
// never unique keys.
type Reference struct {
	Value     string
	Synthetic bool
}

// CandidatePayment is a payment extracted from notification text. It is
// staged for department assignment and never persisted as is.
type CandidatePayment struct {
	Amount    core.Money
	Payer     PayerName
	Method    core.Method
	Reference Reference
	Timestamp time.Time
	// TimestampFallback is set when no date was found and Timestamp is the
	// parse time.
	TimestampFallback bool
	// Source is the collapsed segment text the candidate came from.
	Source string
}

type candidateJSON struct {
	Amount             core.Money  `json:"amount"`
	Name               string      `json:"name"`
	NameKnown          bool        `json:"name_known"`
	Method             core.Method `json:"method"`
	Reference          string      `json:"reference"`
	ReferenceSynthetic bool        `json:"reference_synthetic"`
	Timestamp          time.Time   `json:"timestamp"`
	TimestampFallback  bool        `json:"timestamp_fallback"`
	Source             string      `json:"source,omitempty"`
}

func (c CandidatePayment) MarshalJSON() ([]byte, error) {
	name, known := c.Payer.Value()
	if !known {
		name = UnknownPayerLabel
	}
	return json.Marshal(candidateJSON{
		Amount:             c.Amount,
		Name:               name,
		NameKnown:          known,
		Method:             c.Method,
		Reference:          c.Reference.Value,
		ReferenceSynthetic: c.Reference.Synthetic,
		Timestamp:          c.Timestamp,
		TimestampFallback:  c.TimestampFallback,
		Source:             c.Source,
	})
}

func (c *CandidatePayment) UnmarshalJSON(data []byte) error {
	var raw candidateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	payer := UnknownPayer()
	if raw.NameKnown || (raw.Name != "" && raw.Name != UnknownPayerLabel) {
		payer = KnownPayer(raw.Name)
	}
	*c = CandidatePayment{
		Amount:            raw.Amount,
		Payer:             payer,
		Method:            raw.Method,
		Reference:         Reference{Value: raw.Reference, Synthetic: raw.ReferenceSynthetic},
		Timestamp:         raw.Timestamp,
		TimestampFallback: raw.TimestampFallback,
		Source:            raw.Source,
	}
	return nil
}

// Outcome distinguishes an empty paste from a paste with nothing usable.
type Outcome int

const (
	// NoInput means the text was empty or whitespace only.
	NoInput Outcome = iota
	// NoMatches means no segment produced a candidate.
	NoMatches
	// Found means at least one candidate was extracted.
	Found
)

func (o Outcome) String() string {
	switch o {
	case NoInput:
		return "no_input"
	case NoMatches:
		return "no_matches"
	case Found:
		return "found"
	default:
		return "unknown"
	}
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Outcome) UnmarshalText(text []byte) error {
	for _, known := range []Outcome{NoInput, NoMatches, Found} {
		if string(text) == known.String() {
			*o = known
			return nil
		}
	}
	return fmt.Errorf("unknown parse outcome %q", text)
}

// Result is the parser output. Candidates keep the order of their source
// segments.
type Result struct {
	Outcome    Outcome            `json:"outcome"`
	Candidates []CandidatePayment `json:"candidates"`
}
