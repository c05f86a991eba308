package schema

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func normalize(t *testing.T, ft FieldType, raw any, opts Options) (any, error) {
	t.Helper()
	spec := FieldSpec{Name: "f", Type: ft}
	if ft == TypeEnum {
		spec.EnumValues = []string{"Paid", "Open"}
	}
	return normalizeValue(raw, spec, opts)
}

func TestNormalizeString(t *testing.T) {
	v, err := normalize(t, TypeString, "  Acme Corp  ", Options{})
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", v)

	_, err = normalize(t, TypeString, 42.0, Options{})
	assert.Error(t, err)
}

func TestNormalizeBool(t *testing.T) {
	cases := []struct {
		raw  any
		want bool
	}{
		{true, true},
		{false, false},
		{"true", true},
		{"No", false},
	}
	for _, c := range cases {
		v, err := normalize(t, TypeBool, c.raw, Options{})
		require.NoError(t, err)
		assert.Equal(t, c.want, v)
	}

	_, err := normalize(t, TypeBool, "maybe", Options{})
	assert.Error(t, err)
}

func TestNormalizeInt(t *testing.T) {
	v, err := normalize(t, TypeInt, 42.0, Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = normalize(t, TypeInt, "17", Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(17), v)

	_, err = normalize(t, TypeInt, 3.5, Options{})
	assert.Error(t, err, "fractional values must not round")
}

func TestNormalizeDecimal(t *testing.T) {
	v, err := normalize(t, TypeDecimal, "1234.567", Options{})
	require.NoError(t, err)
	assert.True(t, v.(decimal.Decimal).Equal(decimal.RequireFromString("1234.567")))

	_, err = normalize(t, TypeDecimal, "12,5", Options{})
	assert.Error(t, err)
}

func TestNormalizeDate(t *testing.T) {
	v, err := normalize(t, TypeDate, "2024-03-07", Options{})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-07", v)

	for _, bad := range []string{"03/07/2024", "2024-13-01", "yesterday", "2024-03-07T00:00:00Z"} {
		_, err := normalize(t, TypeDate, bad, Options{})
		assert.Error(t, err, "literal %q must not be guessed into a date", bad)
	}
}

func TestNormalizeDatetime(t *testing.T) {
	v, err := normalize(t, TypeDatetime, "2024-03-07T10:30:00+05:30", Options{})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-07T10:30:00+05:30", v, "timezone must be preserved")

	v, err = normalize(t, TypeDatetime, "2024-03-07T10:30:00", Options{})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-07T10:30:00", v)

	_, err = normalize(t, TypeDatetime, "next tuesday", Options{})
	assert.Error(t, err)
}

func TestNormalizePercent(t *testing.T) {
	// '45%' on the 0-100 scale normalizes to 0.45.
	v, err := normalize(t, TypePercent, "45%", Options{PercentScale: ScaleHundred})
	require.NoError(t, err)
	assert.InDelta(t, 0.45, v.(float64), 1e-9)

	// The same bare literal on the 0-1 scale is out of range, not clamped.
	_, err = normalize(t, TypePercent, 45.0, Options{PercentScale: ScaleUnit})
	assert.Error(t, err)

	// A '%' suffix always means the 0-100 scale, whatever the option says.
	v, err = normalize(t, TypePercent, "45%", Options{PercentScale: ScaleUnit})
	require.NoError(t, err)
	assert.InDelta(t, 0.45, v.(float64), 1e-9)

	v, err = normalize(t, TypePercent, 0.45, Options{PercentScale: ScaleUnit})
	require.NoError(t, err)
	assert.InDelta(t, 0.45, v.(float64), 1e-9)

	_, err = normalize(t, TypePercent, -0.1, Options{PercentScale: ScaleUnit})
	assert.Error(t, err)
}

func TestNormalizeEnumStrict(t *testing.T) {
	v, err := normalize(t, TypeEnum, "Paid", Options{})
	require.NoError(t, err)
	assert.Equal(t, "Paid", v)

	_, err = normalize(t, TypeEnum, "Pending", Options{})
	assert.Error(t, err, "unknown value must not be coerced to nearest match")

	_, err = normalize(t, TypeEnum, "paid", Options{})
	assert.Error(t, err, "membership is case-sensitive")
}

func TestAllowedTypesClosed(t *testing.T) {
	assert.False(t, IsAllowed(FieldType("uuid")))
	assert.Len(t, AllowedTypes(), 10)
}
