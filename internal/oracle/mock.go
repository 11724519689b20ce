package oracle

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	// DefaultMockDecimals matches the precision of ETH/USD feeds.
	DefaultMockDecimals = 8
)

// DefaultMockAnswer is 2000 stable units per native unit at DefaultMockDecimals.
var DefaultMockAnswer = big.NewInt(200_000_000_000)

// ErrRoundNotFound is returned by RoundData for unknown round ids.
var ErrRoundNotFound = errors.New("fundme: round not found")

// Round is a single aggregator answer.
type Round struct {
	ID        uint64
	Answer    *big.Int
	StartedAt time.Time
	UpdatedAt time.Time
}

// Mock is an in-process aggregator for development networks. Every UpdateAnswer
// starts a new round.
type Mock struct {
	mu       sync.RWMutex
	decimals uint8
	rounds   []Round
	failure  error
	now      func() time.Time
}

// NewMock creates a mock aggregator with the first round set to initialAnswer.
func NewMock(decimals uint8, initialAnswer *big.Int) *Mock {
	m := &Mock{decimals: decimals, now: time.Now}
	m.UpdateAnswer(initialAnswer)
	return m
}

// Decimals returns the answer precision.
func (m *Mock) Decimals() uint8 {
	return m.decimals
}

// UpdateAnswer records a new round with the given answer.
func (m *Mock) UpdateAnswer(answer *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := m.now()
	var a *big.Int
	if answer != nil {
		a = new(big.Int).Set(answer)
	}

	m.rounds = append(m.rounds, Round{
		ID:        uint64(len(m.rounds) + 1),
		Answer:    a,
		StartedAt: ts,
		UpdatedAt: ts,
	})
}

// LatestRoundData returns the most recent round.
func (m *Mock) LatestRoundData() Round {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.rounds[len(m.rounds)-1].clone()
}

// RoundData returns the round with the given id.
func (m *Mock) RoundData(id uint64) (Round, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if id == 0 || id > uint64(len(m.rounds)) {
		return Round{}, errors.Wrapf(ErrRoundNotFound, "round %d", id)
	}

	return m.rounds[id-1].clone(), nil
}

// Fail makes subsequent reads return err wrapped in ErrOracleUnavailable.
// Fail(nil) restores normal operation.
func (m *Mock) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failure = err
}

// LatestRate implements Oracle.
func (m *Mock) LatestRate(ctx context.Context) (Rate, error) {
	if err := ctx.Err(); err != nil {
		return Rate{}, errors.Wrap(ErrOracleUnavailable, err.Error())
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failure != nil {
		return Rate{}, errors.Wrap(ErrOracleUnavailable, m.failure.Error())
	}

	latest := m.rounds[len(m.rounds)-1].clone()
	return Rate{Value: latest.Answer, Decimals: m.decimals}, nil
}

func (r Round) clone() Round {
	if r.Answer != nil {
		r.Answer = new(big.Int).Set(r.Answer)
	}
	return r
}
