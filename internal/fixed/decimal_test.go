package fixed

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArithmeticTruncatesTowardZero(t *testing.T) {
	a := MustParse("10.9999999")
	b := MustParse("0.0000001")

	require.Equal(t, "10.999999", a.Add(b, ScaleQuantity).StringFixed(ScaleQuantity))
	require.Equal(t, "10.999999", a.Sub(b, ScaleQuantity).StringFixed(ScaleQuantity))

	// 1.05 * 10.000001 = 10.50000105 -> truncated, never rounded half-up.
	p := MustParse("1.05").Mul(MustParse("10.000001"), ScaleQuantity)
	require.Equal(t, "10.500001", p.StringFixed(ScaleQuantity))

	n := MustParse("-10.5000019").Add(Zero(), ScaleQuantity)
	require.Equal(t, "-10.500001", n.StringFixed(ScaleQuantity))
}

func TestDivTruncates(t *testing.T) {
	q, err := MustParse("10").Div(MustParse("3"), ScaleQuantity)
	require.NoError(t, err)
	require.Equal(t, "3.333333", q.StringFixed(ScaleQuantity))

	q, err = MustParse("2").Div(MustParse("3"), 4)
	require.NoError(t, err)
	require.Equal(t, "0.6666", q.StringFixed(4))

	q, err = MustParse("-10").Div(MustParse("3"), 2)
	require.NoError(t, err)
	require.Equal(t, "-3.33", q.StringFixed(2))
}

func TestDivByZero(t *testing.T) {
	_, err := MustParse("1").Div(Zero(), ScaleQuantity)
	require.ErrorIs(t, err, ErrDivisionByZero)
}

func TestExactComparison(t *testing.T) {
	require.True(t, MustParse("10.500000").Equal(MustParse("10.5")))
	require.Equal(t, 0, MustParse("0.0000").Cmp(Zero()))
	require.Equal(t, -1, MustParse("1.999999").Cmp(MustParse("2")))
	require.True(t, MustParse("-0.000001").IsNegative())
	require.False(t, MustParse("0.000000").IsNegative())
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("12,5")
	require.Error(t, err)
	_, err = Parse("")
	require.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	v := MustParse("10.5000")
	data, err := v.MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, `"10.5"`, string(data))

	var back Decimal
	require.NoError(t, back.UnmarshalJSON([]byte(`"10.5"`)))
	require.True(t, v.Equal(back))
	require.NoError(t, back.UnmarshalJSON([]byte(`10.5`)))
	require.True(t, v.Equal(back))
}
