package occurrences

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/civil-defense-api/databases"
)

// Allocator hands out registration numbers (R.A.) in the form {year}-{seq}.
// The year is the calendar year at allocation time and seq restarts at 001
// every year.
type Allocator interface {
	Next(ctx context.Context) (string, error)
}

// Clock returns the current time. Allocators read the year from it.
type Clock func() time.Time

// Allocation strategies accepted by RA_ALLOCATOR
const (
	StrategyScan    = "scan"
	StrategyCounter = "counter"
	StrategyRedis   = "redis"
)

// ScanAllocator reads the highest registration number of the year and
// returns the next one. Read and insert are not atomic, two concurrent
// creations can receive the same number.
type ScanAllocator struct {
	db    databases.OccurrenceDatabase
	clock Clock
}

// NewScanAllocator returns an allocator that derives the next number from the
// occurrences collection
func NewScanAllocator(db databases.OccurrenceDatabase, clock Clock) *ScanAllocator {
	return &ScanAllocator{db: db, clock: clock}
}

// Next returns {year}-001 for the first occurrence of the year, otherwise the
// highest existing sequence plus one, zero padded to three digits. Past 999
// the suffix grows to four digits.
func (a *ScanAllocator) Next(ctx context.Context) (string, error) {
	year := a.clock().Year()
	highest, err := highestSequence(ctx, a.db, year)
	if err != nil {
		return "", err
	}
	return FormatRANumber(year, highest+1), nil
}

// CounterAllocator keeps one counter document per year in the counters
// collection and increments it atomically. The counter is seeded from the
// occurrences collection the first time a year is used by this process.
type CounterAllocator struct {
	db       databases.OccurrenceDatabase
	counters databases.CounterDatabase
	clock    Clock
	seeds    yearSeeds
}

// NewCounterAllocator returns an allocator backed by an atomic counter document
func NewCounterAllocator(db databases.OccurrenceDatabase, counters databases.CounterDatabase, clock Clock) *CounterAllocator {
	return &CounterAllocator{db: db, counters: counters, clock: clock}
}

func (a *CounterAllocator) Next(ctx context.Context) (string, error) {
	year := a.clock().Year()
	key := fmt.Sprintf("ra:%d", year)
	err := a.seeds.once(year, func() error {
		highest, err := highestSequence(ctx, a.db, year)
		if err != nil {
			return err
		}
		return a.counters.Seed(ctx, key, int64(highest))
	})
	if err != nil {
		return "", wrap("seed counter "+key, err)
	}

	seq, err := a.counters.Increment(ctx, key)
	if err != nil {
		return "", wrap("increment counter "+key, err)
	}
	return FormatRANumber(year, int(seq)), nil
}

// RedisAllocator keeps the per year sequence in redis under ra:seq:{year}.
// The key is seeded with SETNX from the occurrences collection, then INCR
// hands out numbers.
type RedisAllocator struct {
	db     databases.OccurrenceDatabase
	client redis.Cmdable
	clock  Clock
	seeds  yearSeeds
}

// NewRedisAllocator returns an allocator backed by redis INCR
func NewRedisAllocator(db databases.OccurrenceDatabase, client redis.Cmdable, clock Clock) *RedisAllocator {
	return &RedisAllocator{db: db, client: client, clock: clock}
}

func (a *RedisAllocator) Next(ctx context.Context) (string, error) {
	year := a.clock().Year()
	key := fmt.Sprintf("ra:seq:%d", year)
	err := a.seeds.once(year, func() error {
		highest, err := highestSequence(ctx, a.db, year)
		if err != nil {
			return err
		}
		return a.client.SetNX(ctx, key, highest, 0).Err()
	})
	if err != nil {
		return "", wrap("seed "+key, err)
	}

	seq, err := a.client.Incr(ctx, key).Result()
	if err != nil {
		return "", wrap("incr "+key, err)
	}
	return FormatRANumber(year, int(seq)), nil
}

// yearSeeds remembers which years were already seeded by this process. A
// failed seed is retried on the next call.
type yearSeeds struct {
	mu   sync.Mutex
	done map[int]bool
}

func (s *yearSeeds) once(year int, seed func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done[year] {
		return nil
	}
	if err := seed(); err != nil {
		return err
	}
	if s.done == nil {
		s.done = map[int]bool{}
	}
	s.done[year] = true
	return nil
}

// FormatRANumber renders a registration number
func FormatRANumber(year, seq int) string {
	return fmt.Sprintf("%d-%03d", year, seq)
}

// ParseRANumber splits a registration number into its year and sequence
func ParseRANumber(ra string) (int, int, error) {
	prefix, suffix, ok := strings.Cut(ra, "-")
	if !ok {
		return 0, 0, fmt.Errorf("registration number %q: missing separator: %w", ra, ErrInvalidInput)
	}
	year, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, 0, fmt.Errorf("registration number %q: %w", ra, ErrInvalidInput)
	}
	seq, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, 0, fmt.Errorf("registration number %q: %w", ra, ErrInvalidInput)
	}
	return year, seq, nil
}

// yearRange matches every registration number of year by string order
func yearRange(year int) bson.M {
	return bson.M{"raNumber": bson.M{
		"$gte": fmt.Sprintf("%d-000", year),
		"$lt":  fmt.Sprintf("%d-000", year+1),
	}}
}

// highestSequence returns the sequence of the lexicographically highest
// registration number of year, or 0 when the year has none
func highestSequence(ctx context.Context, db databases.OccurrenceDatabase, year int) (int, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "raNumber", Value: -1}})
	last, err := db.FindOne(ctx, yearRange(year), opts)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, wrap("find highest registration number", err)
	}
	_, seq, err := ParseRANumber(last.RANumber)
	if err != nil {
		return 0, err
	}
	return seq, nil
}
