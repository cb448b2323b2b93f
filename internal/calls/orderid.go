package calls

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sync"
	"time"
)

const (
	orderIDPrefix    = "ORD"
	orderIDStampFmt  = "200601021504"
	orderIDSuffixLen = 4
	orderIDAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// maxSuffixDraws bounds the search for an unused suffix within one minute.
	maxSuffixDraws = 64
)

var (
	ErrOrderIDExhausted = errors.New("calls: no unused order id left for this minute")

	orderIDPattern = regexp.MustCompile(`^ORD\d{12}[A-Z0-9]{4}$`)
)

// ValidOrderID reports whether s has the ORD + yyyyMMddHHmm + 4 char shape.
func ValidOrderID(s string) bool {
	return orderIDPattern.MatchString(s)
}

// OrderIDGenerator mints assignment identifiers: "ORD", the UTC minute as
// yyyyMMddHHmm, then a random [A-Z0-9]{4} suffix.
//
// Within one process, ids are unique per minute: suffixes already handed out
// for the current minute are remembered and redrawn. Cross-process uniqueness
// is enforced by the call_logs.order_id unique index.
type OrderIDGenerator struct {
	mu     sync.Mutex
	now    func() time.Time
	rand   io.Reader
	minute string
	issued map[string]struct{}
}

func NewOrderIDGenerator() *OrderIDGenerator {
	return NewOrderIDGeneratorWith(time.Now, rand.Reader)
}

// NewOrderIDGeneratorWith injects the clock and entropy source.
func NewOrderIDGeneratorWith(now func() time.Time, r io.Reader) *OrderIDGenerator {
	if now == nil {
		now = time.Now
	}
	if r == nil {
		r = rand.Reader
	}
	return &OrderIDGenerator{now: now, rand: r, issued: map[string]struct{}{}}
}

func (g *OrderIDGenerator) Next() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	minute := g.now().UTC().Format(orderIDStampFmt)
	if minute != g.minute {
		g.minute = minute
		g.issued = map[string]struct{}{}
	}

	for i := 0; i < maxSuffixDraws; i++ {
		suffix, err := g.suffix()
		if err != nil {
			return "", fmt.Errorf("calls: order id entropy: %w", err)
		}
		if _, dup := g.issued[suffix]; dup {
			continue
		}
		g.issued[suffix] = struct{}{}
		return orderIDPrefix + minute + suffix, nil
	}
	return "", ErrOrderIDExhausted
}

func (g *OrderIDGenerator) suffix() (string, error) {
	// Rejection sampling keeps the alphabet uniform: 252 = 7*36.
	const limit = 252
	out := make([]byte, 0, orderIDSuffixLen)
	buf := make([]byte, 8)
	for len(out) < orderIDSuffixLen {
		if _, err := io.ReadFull(g.rand, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, orderIDAlphabet[int(b)%len(orderIDAlphabet)])
			if len(out) == orderIDSuffixLen {
				break
			}
		}
	}
	return string(out), nil
}
