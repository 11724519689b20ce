package oracle

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMock_LatestRate(t *testing.T) {
	m := NewMock(DefaultMockDecimals, DefaultMockAnswer)

	rate, err := m.LatestRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint8(8), rate.Decimals)
	assert.Equal(t, "200000000000", rate.Value.String())
	assert.Equal(t, "2000", rate.String())
	require.NoError(t, rate.Validate())
}

func TestMock_UpdateAnswerStartsNewRound(t *testing.T) {
	m := NewMock(8, big.NewInt(100))
	m.UpdateAnswer(big.NewInt(300))

	latest := m.LatestRoundData()
	assert.Equal(t, uint64(2), latest.ID)
	assert.Equal(t, int64(300), latest.Answer.Int64())

	first, err := m.RoundData(1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), first.Answer.Int64())

	_, err = m.RoundData(3)
	assert.ErrorIs(t, err, ErrRoundNotFound)
	_, err = m.RoundData(0)
	assert.ErrorIs(t, err, ErrRoundNotFound)
}

func TestMock_ReturnedValuesAreCopies(t *testing.T) {
	answer := big.NewInt(100)
	m := NewMock(8, answer)
	answer.SetInt64(1)

	rate, err := m.LatestRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(100), rate.Value.Int64())

	rate.Value.SetInt64(5)
	assert.Equal(t, int64(100), m.LatestRoundData().Answer.Int64())
}

func TestMock_Fail(t *testing.T) {
	m := NewMock(8, big.NewInt(100))
	m.Fail(errors.New("node down"))

	_, err := m.LatestRate(context.Background())
	assert.ErrorIs(t, err, ErrOracleUnavailable)
	assert.Contains(t, err.Error(), "node down")

	m.Fail(nil)
	_, err = m.LatestRate(context.Background())
	assert.NoError(t, err)
}

func TestRate_Validate(t *testing.T) {
	assert.ErrorIs(t, Rate{}.Validate(), ErrInvalidRate)
	assert.ErrorIs(t, Rate{Value: big.NewInt(0), Decimals: 8}.Validate(), ErrInvalidRate)
	assert.ErrorIs(t, Rate{Value: big.NewInt(-1), Decimals: 8}.Validate(), ErrInvalidRate)
	assert.NoError(t, Rate{Value: big.NewInt(1), Decimals: 8}.Validate())
}
