package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSide(t *testing.T) {
	cases := map[string]Side{
		"B": SideBuy, "b": SideBuy, "BUY": SideBuy, " buy ": SideBuy,
		"S": SideSell, "s": SideSell, "SELL": SideSell, "sell": SideSell,
	}
	for in, want := range cases {
		got, err := ParseSide(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}

	for _, in := range []string{"", "X", "BOUGHT", "SHORT"} {
		_, err := ParseSide(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestParseMethodMode(t *testing.T) {
	got, err := ParseMethodMode("")
	require.NoError(t, err)
	assert.Equal(t, MethodAutoBestPerSale, got)

	got, err = ParseMethodMode(" Deemed ")
	require.NoError(t, err)
	assert.Equal(t, MethodDeemed, got)

	_, err = ParseMethodMode("lifo")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestFYLabel(t *testing.T) {
	cases := []struct {
		date string
		want string
	}{
		{"2023-03-31", "FY2023"},
		{"2023-04-01", "FY2024"},
		{"2023-07-15", "FY2024"},
		{"2024-01-10", "FY2024"},
		{"2024-12-31", "FY2025"},
	}
	for _, c := range cases {
		d, err := time.Parse("2006-01-02", c.date)
		require.NoError(t, err)
		assert.Equal(t, c.want, FYLabel(d), "date %s", c.date)
	}
}

func TestFYBounds(t *testing.T) {
	start, err := FYStart("FY2024")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, time.April, 1, 0, 0, 0, 0, time.UTC), start)

	end, err := FYEnd("FY2024")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC), end)

	for _, bad := range []string{"2024", "FY", "FYabc", "FY1800"} {
		_, err := FYStart(bad)
		assert.Error(t, err, "label %q", bad)
	}
}

func TestDailyChargeTotalNormalizesSigns(t *testing.T) {
	c := DailyCharge{TotalBrokerage: 10, TotalTaxes: -2.5, TotalOtherCharges: 1.5}
	assert.InDelta(t, 14.0, c.Total(), 1e-9)
}

func TestRounding(t *testing.T) {
	assert.Equal(t, 1.23, Round2(1.2349))
	assert.Equal(t, 1.24, Round2(1.235))
	assert.Equal(t, -1.24, Round2(-1.235))
	assert.Equal(t, 0.1235, Round4(0.12346))
}

func TestLotTotalCost(t *testing.T) {
	lot := Lot{Quantity: 10, NetUnitPrice: 101.5}
	assert.InDelta(t, 1015.0, lot.TotalCost(), 1e-9)
}

func TestTaxReportRequestValidate(t *testing.T) {
	req := TaxReportRequest{CountryCode: "FI", TaxYear: 2024}
	require.NoError(t, req.Validate())
	assert.Equal(t, MethodAutoBestPerSale, req.MethodMode)
	assert.Equal(t, "EUR", req.BaseCurrency)

	req = TaxReportRequest{CountryCode: "FI", TaxYear: 1850}
	assert.Error(t, req.Validate())

	req = TaxReportRequest{CountryCode: "FI", TaxYear: 2024, MethodMode: "lifo"}
	assert.Error(t, req.Validate())
}
