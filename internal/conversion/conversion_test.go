package conversion

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/fundme/internal/domain"
	"github.com/vadiminshakov/fundme/internal/oracle"
)

func rate(value int64, decimals uint8) oracle.Rate {
	return oracle.Rate{Value: big.NewInt(value), Decimals: decimals}
}

func TestConvert_OneEtherAt2000(t *testing.T) {
	got, err := Convert(domain.Ether(1), rate(200_000_000_000, 8))
	require.NoError(t, err)
	assert.Equal(t, domain.Ether(2000), got)
}

func TestConvert_NormalizesRatePrecision(t *testing.T) {
	want := domain.Ether(2000)
	for _, r := range []oracle.Rate{
		rate(2000, 0),
		rate(200_000_000_000, 8),
		{Value: new(big.Int).Mul(big.NewInt(2000), domain.Pow10(18)), Decimals: 18},
		{Value: new(big.Int).Mul(big.NewInt(2000), domain.Pow10(24)), Decimals: 24},
	} {
		got, err := Convert(domain.Ether(1), r)
		require.NoError(t, err)
		assert.Equal(t, want, got, "rate %s with %d decimals", r.String(), r.Decimals)
	}
}

func TestConvert_Truncates(t *testing.T) {
	// 1 wei at 2000.00000001 is 2000.00000001 * 10^-18 stable, i.e. 2000 stable wei.
	got, err := Convert(big.NewInt(1), rate(200_000_000_001, 8))
	require.NoError(t, err)
	assert.Equal(t, int64(2000), got.Int64())
}

func TestConvert_Monotonic(t *testing.T) {
	r := rate(200_000_000_000, 8)
	prev := big.NewInt(-1)
	for _, wei := range []int64{0, 1, 7, 1_000, 25_000_000_000_000_000, 1_000_000_000_000_000_000} {
		got, err := Convert(big.NewInt(wei), r)
		require.NoError(t, err)
		assert.True(t, got.Cmp(prev) >= 0, "not monotonic in amount at %d", wei)
		prev = got
	}

	prev = big.NewInt(-1)
	for _, v := range []int64{1, 2, 150_000_000_000, 200_000_000_000, 400_000_000_000} {
		got, err := Convert(domain.Ether(1), rate(v, 8))
		require.NoError(t, err)
		assert.True(t, got.Cmp(prev) >= 0, "not monotonic in rate at %d", v)
		prev = got
	}
}

func TestConvert_Deterministic(t *testing.T) {
	amount, err := domain.ParseEther("0.123456789012345678")
	require.NoError(t, err)
	r := rate(187_654_321_098, 8)

	first, err := Convert(amount, r)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		got, err := Convert(amount, r)
		require.NoError(t, err)
		require.Equal(t, first, got)
	}
	// inputs are not mutated
	assert.Equal(t, "123456789012345678", amount.String())
	assert.Equal(t, int64(187_654_321_098), r.Value.Int64())
}

func TestConvert_InvalidInputs(t *testing.T) {
	_, err := Convert(domain.Ether(1), rate(0, 8))
	assert.ErrorIs(t, err, oracle.ErrInvalidRate)

	_, err = Convert(domain.Ether(1), oracle.Rate{Decimals: 8})
	assert.ErrorIs(t, err, oracle.ErrInvalidRate)

	_, err = Convert(big.NewInt(-1), rate(1, 8))
	assert.Error(t, err)
}

func TestToStable(t *testing.T) {
	m := oracle.NewMock(oracle.DefaultMockDecimals, oracle.DefaultMockAnswer)

	got, err := ToStable(context.Background(), domain.Ether(1), m)
	require.NoError(t, err)
	assert.Equal(t, domain.Ether(2000), got)

	m.Fail(errors.New("feed paused"))
	_, err = ToStable(context.Background(), domain.Ether(1), m)
	assert.ErrorIs(t, err, oracle.ErrOracleUnavailable)

	m.Fail(nil)
	m.UpdateAnswer(big.NewInt(-3))
	_, err = ToStable(context.Background(), domain.Ether(1), m)
	assert.ErrorIs(t, err, oracle.ErrInvalidRate)
}

func TestMinimumNative(t *testing.T) {
	r := rate(200_000_000_000, 8)
	minNative, err := MinimumNative(domain.Ether(50), r)
	require.NoError(t, err)
	assert.Equal(t, "25000000000000000", minNative.String()) // 0.025 ether

	stable, err := Convert(minNative, r)
	require.NoError(t, err)
	assert.True(t, stable.Cmp(domain.Ether(50)) >= 0)

	below, err := Convert(new(big.Int).Sub(minNative, big.NewInt(1)), r)
	require.NoError(t, err)
	assert.True(t, below.Cmp(domain.Ether(50)) < 0)

	// rounds up when the minimum is not reachable exactly
	minNative, err = MinimumNative(domain.Ether(50), rate(300_000_000_000, 8))
	require.NoError(t, err)
	assert.Equal(t, "16666666666666667", minNative.String())
}
