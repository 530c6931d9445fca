package timeseries

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRows() [][]string {
	return [][]string{
		{"", "Air Temperature", "Air Temperature", "CO2"},
		{"", "Office", "Office West", "Office"},
		{" 01/05 Jan 05 02:00 PM", "21.5", "22", "650"},
		{" 01/05 Jan 05 03:00 PM", "n/a", "23.1", "700"},
		{"garbage", "1", "2", "3"},
		{" 07/01 Jul 01 09:00 AM", " 24.0 ", "", "810"},
	}
}

func TestBuildDataset(t *testing.T) {
	ds, err := Build(sampleRows(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, 1, ds.Dropped())
	assert.Equal(t, []string{"Office", "Office West"}, ds.Zones())
	assert.Equal(t, []string{"Air Temperature", "CO2"}, ds.Parameters())

	df := ds.Frame()
	assert.Equal(t, []string{"1900-01-05", "1900-01-05", "1900-07-01"}, df.Col(ColDate).Records())
	hours, err := df.Col(ColHour).Int()
	require.NoError(t, err)
	assert.Equal(t, []int{14, 15, 9}, hours)

	// 1900-01-05 是周五
	days, err := df.Col(ColDayOfWeek).Int()
	require.NoError(t, err)
	assert.Equal(t, 4, days[0])

	vals := df.Col("Office Air Temperature").Float()
	assert.Equal(t, 21.5, vals[0])
	assert.True(t, math.IsNaN(vals[1]))
	assert.Equal(t, 24.0, vals[2])
	assert.True(t, math.IsNaN(df.Col("Office West Air Temperature").Float()[2]))
}

func TestBuildSkipRowsAndYear(t *testing.T) {
	rows := append([][]string{{"preamble"}, {"more", "preamble"}}, sampleRows()...)
	ds, err := Build(rows, Options{SkipRows: 2, ReferenceYear: 2023})
	require.NoError(t, err)
	assert.Equal(t, "2023-01-05", ds.Frame().Col(ColDate).Records()[0])
}

func TestBuildShapeErrors(t *testing.T) {
	_, err := Build([][]string{{"only one row"}}, Options{})
	assert.True(t, errors.Is(err, ErrTableShape))

	_, err = Build([][]string{{"a"}, {"b"}}, Options{})
	assert.True(t, errors.Is(err, ErrTableShape))

	_, err = Build(sampleRows(), Options{SkipRows: 10})
	assert.True(t, errors.Is(err, ErrTableShape))
}

func TestBuildNoDataRows(t *testing.T) {
	ds, err := Build(sampleRows()[:2], Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Len())
	assert.Len(t, ds.Columns(), 3)
}

func TestBuildDuplicateColumns(t *testing.T) {
	rows := [][]string{
		{"", "T", "T", ""},
		{"", "Z", "Z", ""},
		{" 01/05 Jan 05 02:00 PM", "1", "2", "3"},
	}
	ds, err := Build(rows, Options{})
	require.NoError(t, err)
	assert.Len(t, ds.Columns(), 1)
	assert.Len(t, ds.Diagnostics(), 1)
	assert.Equal(t, 1.0, ds.Frame().Col("Z T").Float()[0])
}

func TestParseTimestamp(t *testing.T) {
	ts, ok := ParseTimestamp(" 12/31 Dec 31 12:30 AM", 1900)
	require.True(t, ok)
	assert.Equal(t, 0, ts.Hour())
	assert.Equal(t, 30, ts.Minute())

	_, ok = ParseTimestamp(" 02/29 Feb 29 01:00 PM", 1900)
	assert.False(t, ok)

	_, ok = ParseTimestamp(" 02/29 Feb 29 01:00 PM", 2024)
	assert.True(t, ok)

	_, ok = ParseTimestamp("short", 1900)
	assert.False(t, ok)
}

func TestResolve(t *testing.T) {
	ds, err := Build(sampleRows(), Options{})
	require.NoError(t, err)

	col, err := ds.Resolve("Office", "Air Temperature")
	require.NoError(t, err)
	assert.Equal(t, "Office Air Temperature", col.Name)

	col, err = ds.Resolve("West", "Temperature")
	require.NoError(t, err)
	assert.Equal(t, "Office West Air Temperature", col.Name)

	_, err = ds.Resolve("Office", "Temperature")
	assert.True(t, errors.Is(err, ErrAmbiguousColumn))

	_, err = ds.Resolve("Lobby", "CO2")
	assert.True(t, errors.Is(err, ErrColumnNotFound))
}

func TestDatasetWrapperKeepsPreviousOnFailure(t *testing.T) {
	var w DatasetWrapper
	assert.Equal(t, 0, w.GetDataset().Len())

	first, err := w.Load(sampleRows(), Options{}, "first.csv")
	require.NoError(t, err)
	assert.Equal(t, "first.csv", w.GetDataset().Source())

	_, err = w.Load([][]string{{"x"}}, Options{}, "broken.csv")
	require.Error(t, err)
	assert.Same(t, first, w.GetDataset())
}
