package marketdata

import (
	"context"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	simStartPrice = decimal.NewFromInt(100)
	simMaxStep    = 0.01
)

// Simulated generates a random walk per call. It performs no I/O, so it
// never fails.
type Simulated struct {
	now func() time.Time
}

var _ Source = (*Simulated)(nil)

// NewSimulated creates a Simulated source using the wall clock.
func NewSimulated() *Simulated {
	return &Simulated{now: time.Now}
}

// Closes starts at 100 and moves each step by a uniform factor in
// [-1%, +1%), rounded to 8 digits. The walk is seeded from the user id and
// the current time, so two users never share a series.
func (s *Simulated) Closes(_ context.Context, userID uuid.UUID, _, _ string, count int) ([]decimal.Decimal, error) {
	if count <= 0 {
		return nil, nil
	}

	h := fnv.New64a()
	_, _ = h.Write(userID[:])
	r := rand.New(rand.NewSource(int64(h.Sum64()) + s.now().UnixMilli()))

	closes := make([]decimal.Decimal, count)
	price := simStartPrice
	closes[0] = price
	for i := 1; i < count; i++ {
		change := decimal.NewFromFloat((r.Float64()*2 - 1) * simMaxStep)
		price = price.Mul(decimal.NewFromInt(1).Add(change)).Round(8)
		closes[i] = price
	}
	return closes, nil
}
