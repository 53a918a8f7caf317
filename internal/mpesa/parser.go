// Package mpesa extracts candidate payments from pasted mobile-money
// notification text.
//
// Extraction is a fixed sequence of independent rules applied to each
// message segment: amount, classification, timestamp, reference and payer
// name. Only the amount and the classification can reject a segment; every
// other rule degrades to a placeholder so the candidate is still staged for
// review.
package mpesa

import (
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"harambee/internal/core"
)

var (
	// messageMarker is the start of an M-Pesa message: a transaction code
	// followed by "Confirmed".
	messageMarker = regexp.MustCompile(`\b([A-Z0-9]{8,})\s+Confirmed\b`)

	amountToken = regexp.MustCompile(`(?i)\bKsh\.?\s*([\d,]+(?:\.\d+)?)`)

	personalOn  = regexp.MustCompile(`(?i:\bfrom)\s+(.*?)\s+on\s`)
	fromWord    = regexp.MustCompile(`(?i)\bfrom\s+`)
	merchantFor = regexp.MustCompile(`(?i:\bsent to)\s+(.*?)\s+for\s`)
	merchantOn  = regexp.MustCompile(`(?i:\bsent to)\s+(.*?)\s+on\s`)
	sentToWord  = regexp.MustCompile(`(?i)\bsent to\s+`)
	trailingTel = regexp.MustCompile(`(?:^|\s+)\+?\d{10,}$`)
)

// Synthetic reference numbers fall in [referenceMin, referenceMax].
const (
	referenceMin = 1000
	referenceMax = 99999
)

// Option configures a Parser.
type Option func(*Parser)

// WithClock sets the source of the fallback timestamp.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLocation sets the zone message dates are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		if loc != nil {
			p.loc = loc
		}
	}
}

// WithRand sets the random source used for synthetic references.
func WithRand(r *rand.Rand) Option {
	return func(p *Parser) { p.rnd = r }
}

// Parser is safe for concurrent use.
type Parser struct {
	now func() time.Time
	loc *time.Location

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewParser(opts ...Option) *Parser {
	p := &Parser{now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse never fails. Empty text yields NoInput; text without a usable
// payment yields NoMatches.
func (p *Parser) Parse(text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Outcome: NoInput, Candidates: []CandidatePayment{}}
	}

	candidates := []CandidatePayment{}
	for _, seg := range Segment(text) {
		if c, ok := p.extract(seg); ok {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return Result{Outcome: NoMatches, Candidates: candidates}
	}
	return Result{Outcome: Found, Candidates: candidates}
}

// Segment splits text into messages. The text is cut at every message
// marker; without markers every non-blank line is a message. Whitespace
// inside each segment is collapsed to single spaces.
func Segment(text string) []string {
	var raw []string
	idx := messageMarker.FindAllStringIndex(text, -1)
	if len(idx) == 0 {
		raw = strings.Split(text, "\n")
	} else {
		if idx[0][0] > 0 {
			raw = append(raw, text[:idx[0][0]])
		}
		for i, loc := range idx {
			end := len(text)
			if i+1 < len(idx) {
				end = idx[i+1][0]
			}
			raw = append(raw, text[loc[0]:end])
		}
	}

	segments := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.Join(strings.Fields(s), " ")
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func (p *Parser) extract(seg string) (CandidatePayment, bool) {
	m := amountToken.FindStringSubmatch(seg)
	if m == nil {
		return CandidatePayment{}, false
	}
	amount, err := core.ParseMoney(m[1])
	if err != nil && !zeroAmount(m[1]) {
		return CandidatePayment{}, false
	}

	method, ok := classify(seg)
	if !ok {
		return CandidatePayment{}, false
	}

	c := CandidatePayment{
		Amount: amount,
		Method: method,
		Source: seg,
	}

	if ts, ok := NormalizeDate(seg, p.loc); ok {
		c.Timestamp = ts
	} else {
		c.Timestamp = p.now()
		c.TimestampFallback = true
	}

	if ref := messageMarker.FindStringSubmatch(seg); ref != nil {
		c.Reference = Reference{Value: ref[1]}
	} else {
		c.Reference = p.syntheticReference(method)
	}

	var name string
	if method == core.MethodTill {
		name = merchantName(seg)
	} else {
		name = personalName(seg)
	}
	if name = cleanName(name); name != "" {
		c.Payer = KnownPayer(name)
	} else {
		c.Payer = UnknownPayer()
	}
	return c, true
}

func classify(seg string) (core.Method, bool) {
	lower := strings.ToLower(seg)
	switch {
	case strings.Contains(lower, "received"):
		return core.MethodMpesa, true
	case strings.Contains(lower, "sent to"):
		return core.MethodTill, true
	default:
		return "", false
	}
}

func personalName(seg string) string {
	if m := personalOn.FindStringSubmatch(seg); m != nil {
		return m[1]
	}
	return beforeDate(seg, fromWord)
}

func merchantName(seg string) string {
	if m := merchantFor.FindStringSubmatch(seg); m != nil {
		return m[1]
	}
	if m := merchantOn.FindStringSubmatch(seg); m != nil {
		return m[1]
	}
	return beforeDate(seg, sentToWord)
}

// beforeDate returns the text between lead and the first date token.
func beforeDate(seg string, lead *regexp.Regexp) string {
	loc := lead.FindStringIndex(seg)
	if loc == nil {
		return ""
	}
	rest := seg[loc[1]:]
	i := findDateIndex(rest)
	if i < 0 {
		return ""
	}
	return rest[:i]
}

// zeroAmount reports whether an amount token rounds to zero cents. Such
// segments are still staged; the commit rejects them.
func zeroAmount(token string) bool {
	d, err := decimal.NewFromString(strings.ReplaceAll(token, ",", ""))
	return err == nil && d.Round(2).IsZero()
}

func cleanName(name string) string {
	name = strings.ToValidUTF8(name, "")
	name = strings.TrimSpace(name)
	name = trailingTel.ReplaceAllString(name, "")
	return strings.Trim(name, " .,")
}

func (p *Parser) syntheticReference(method core.Method) Reference {
	var n int
	if p.rnd != nil {
		p.mu.Lock()
		n = referenceMin + p.rnd.IntN(referenceMax-referenceMin+1)
		p.mu.Unlock()
	} else {
		n = referenceMin + rand.IntN(referenceMax-referenceMin+1)
	}
	return Reference{
		Value:     method.ShortCode() + "-" + strconv.Itoa(n),
		Synthetic: true,
	}
}
