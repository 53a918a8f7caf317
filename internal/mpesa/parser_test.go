package mpesa

import (
	"encoding/json"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"harambee/internal/core"
)

var parseNow = time.Date(2025, 2, 14, 10, 0, 0, 0, time.UTC)

func newTestParser() *Parser {
	return NewParser(
		WithClock(func() time.Time { return parseNow }),
		WithLocation(time.UTC),
		WithRand(rand.New(rand.NewPCG(1, 2))),
	)
}

const johnDoe = "SAB1CD2EF3 Confirmed. You have received Ksh1,234.56 from John Doe 0712345678 on 20/1/25 at 8:54 PM New M-PESA balance is Ksh5,000.00."

func TestParsePersonalReceipt(t *testing.T) {
	res := newTestParser().Parse(johnDoe)
	require.Equal(t, Found, res.Outcome)
	require.Len(t, res.Candidates, 1)

	c := res.Candidates[0]
	require.Equal(t, int64(123456), c.Amount.Cents)
	name, known := c.Payer.Value()
	require.True(t, known)
	require.Equal(t, "John Doe", name)
	require.Equal(t, core.MethodMpesa, c.Method)
	require.Equal(t, Reference{Value: "SAB1CD2EF3"}, c.Reference)
	require.Equal(t, time.Date(2025, 1, 20, 20, 54, 0, 0, time.UTC), c.Timestamp)
	require.False(t, c.TimestampFallback)
}

func TestParseUnknownPayer(t *testing.T) {
	res := newTestParser().Parse("You have received Ksh 200 on 2/3/2025 at 12:05 AM")
	require.Equal(t, Found, res.Outcome)
	require.Len(t, res.Candidates, 1)

	c := res.Candidates[0]
	require.False(t, c.Payer.Known())
	require.Equal(t, "Unknown", c.Payer.String())
	require.True(t, c.Reference.Synthetic)
	require.True(t, strings.HasPrefix(c.Reference.Value, "SMS-"), c.Reference.Value)
	require.Equal(t, time.Date(2025, 3, 2, 0, 5, 0, 0, time.UTC), c.Timestamp)
}

func TestParseFallbackTimestamp(t *testing.T) {
	res := newTestParser().Parse("received Ksh 50 from Peter")
	require.Len(t, res.Candidates, 1)

	c := res.Candidates[0]
	require.True(t, c.TimestampFallback)
	require.Equal(t, parseNow, c.Timestamp)
	require.False(t, c.Payer.Known())
}

func TestParseOutcomes(t *testing.T) {
	p := newTestParser()

	empty := p.Parse("   \n\t ")
	require.Equal(t, NoInput, empty.Outcome)
	require.Empty(t, empty.Candidates)

	none := p.Parse("hello world\nnothing to see here")
	require.Equal(t, NoMatches, none.Outcome)
	require.Empty(t, none.Candidates)

	zero := p.Parse("received Ksh 0.00 from Jane on 1/1/25 at 1:00 PM")
	require.Equal(t, Found, zero.Outcome)
	require.Len(t, zero.Candidates, 1)
	require.Zero(t, zero.Candidates[0].Amount.Cents)
	require.Equal(t, "Jane", zero.Candidates[0].Payer.String())

	huge := p.Parse("received Ksh 999,999,999,999,999,999.00 from Jane on 1/1/25 at 1:00 PM")
	require.Equal(t, NoMatches, huge.Outcome)

	unclassified := p.Parse("Your balance is Ksh 1,000")
	require.Equal(t, NoMatches, unclassified.Outcome)
}

func TestParseConcatenatedMessages(t *testing.T) {
	text := "AAA1111111 Confirmed. You have received Ksh500.00 from JANE WANJIKU 0722000000 on 1/2/25 at 9:00 AM. " +
		"BBB2222222 Confirmed. Ksh1,000.00 sent to KCB for account 12345 on 1/2/25 at 10:30 AM."

	res := newTestParser().Parse(text)
	require.Equal(t, Found, res.Outcome)
	require.Len(t, res.Candidates, 2)

	first, second := res.Candidates[0], res.Candidates[1]
	require.Equal(t, "JANE WANJIKU", first.Payer.String())
	require.Equal(t, core.MethodMpesa, first.Method)
	require.Equal(t, "AAA1111111", first.Reference.Value)
	require.Equal(t, int64(50000), first.Amount.Cents)

	require.Equal(t, "KCB", second.Payer.String())
	require.Equal(t, core.MethodTill, second.Method)
	require.Equal(t, "BBB2222222", second.Reference.Value)
	require.Equal(t, int64(100000), second.Amount.Cents)
	require.Equal(t, time.Date(2025, 2, 1, 10, 30, 0, 0, time.UTC), second.Timestamp)
}

func TestParseWrappedMessage(t *testing.T) {
	text := "junk before the first message\n" +
		"SAB1CD2EF3 Confirmed. You have\nreceived Ksh1,000.00 from\nJOHN DOE on 20/1/25\nat 8:54 PM"

	res := newTestParser().Parse(text)
	require.Len(t, res.Candidates, 1)
	require.Equal(t, "JOHN DOE", res.Candidates[0].Payer.String())
	require.False(t, res.Candidates[0].TimestampFallback)
}

func TestParseMerchantWithoutAccount(t *testing.T) {
	res := newTestParser().Parse("Ksh300 sent to MARY ATIENO 0711111111 on 5/6/25 at 1:15 PM")
	require.Len(t, res.Candidates, 1)

	c := res.Candidates[0]
	require.Equal(t, "MARY ATIENO", c.Payer.String())
	require.Equal(t, core.MethodTill, c.Method)
	require.True(t, strings.HasPrefix(c.Reference.Value, "TILL-"), c.Reference.Value)
	require.Equal(t, time.Date(2025, 6, 5, 13, 15, 0, 0, time.UTC), c.Timestamp)
}

func TestParseKeepsInputOrder(t *testing.T) {
	text := strings.Join([]string{
		"Ksh 100 received from Alpha on 1/1/25 at 1:00 PM",
		"random line Ksh 50",
		"",
		"Ksh 200 received from Bravo on 1/1/25 at 2:00 PM",
	}, "\n")

	res := newTestParser().Parse(text)
	require.Len(t, res.Candidates, 2)
	require.Equal(t, "Alpha", res.Candidates[0].Payer.String())
	require.Equal(t, "Bravo", res.Candidates[1].Payer.String())
}

func TestParseIsIdempotent(t *testing.T) {
	text := johnDoe + "\nYou have received Ksh 200 on 2/3/2025 at 12:05 AM"
	p := NewParser(WithLocation(time.UTC))

	a, b := p.Parse(text), p.Parse(text)
	require.Len(t, a.Candidates, len(b.Candidates))
	for i := range a.Candidates {
		x, y := a.Candidates[i], b.Candidates[i]
		require.Equal(t, x.Amount, y.Amount)
		require.Equal(t, x.Payer, y.Payer)
		require.Equal(t, x.Method, y.Method)
		require.Equal(t, x.Timestamp, y.Timestamp)
	}
}

func TestSyntheticReferenceRange(t *testing.T) {
	p := newTestParser()
	for i := 0; i < 200; i++ {
		ref := p.syntheticReference(core.MethodMpesa)
		n := strings.TrimPrefix(ref.Value, "SMS-")
		require.GreaterOrEqual(t, len(n), 4)
		require.LessOrEqual(t, len(n), 5)
	}
}

func TestSegment(t *testing.T) {
	require.Equal(t, []string{"A", "B c"}, Segment("A\n\n  B \t c "))
	require.Equal(t,
		[]string{"intro", "AAAA1111 Confirmed. one", "BBBB2222 Confirmed. two"},
		Segment("intro AAAA1111 Confirmed. one\nBBBB2222 Confirmed. two"))
}

func TestCandidateJSON(t *testing.T) {
	c := CandidatePayment{
		Amount:    core.Money{Cents: 20000},
		Payer:     UnknownPayer(),
		Method:    core.MethodMpesa,
		Reference: Reference{Value: "SMS-1234", Synthetic: true},
		Timestamp: parseNow,
	}
	b, err := json.Marshal(c)
	require.NoError(t, err)
	require.Contains(t, string(b), `"name":"Unknown"`)
	require.Contains(t, string(b), `"name_known":false`)

	var back CandidatePayment
	require.NoError(t, json.Unmarshal(b, &back))
	require.False(t, back.Payer.Known())
	require.True(t, back.Reference.Synthetic)
}

func TestOutcomeText(t *testing.T) {
	for _, o := range []Outcome{NoInput, NoMatches, Found} {
		text, err := o.MarshalText()
		require.NoError(t, err)
		var back Outcome
		require.NoError(t, back.UnmarshalText(text))
		require.Equal(t, o, back)
	}
	var o Outcome
	require.Error(t, o.UnmarshalText([]byte("partial")))
}

func TestParseDropsInvalidUTF8FromNames(t *testing.T) {
	res := newTestParser().Parse("received Ksh 100.00 from \xffBad\xfe Name on 1/1/25 at 1:00 PM")
	require.Len(t, res.Candidates, 1)
	name, known := res.Candidates[0].Payer.Value()
	require.True(t, known)
	require.Equal(t, "Bad Name", name)

	res = newTestParser().Parse("received Ksh 100.00 from \xff\xfe on 1/1/25 at 1:00 PM")
	require.Len(t, res.Candidates, 1)
	require.False(t, res.Candidates[0].Payer.Known())
}
