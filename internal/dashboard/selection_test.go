package dashboard

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestSelectionIsExclusive(t *testing.T) {
	s := Default()
	assert.True(t, s.Is7())

	require.NoError(t, s.SelectCustom(day("2024-03-01"), day("2024-03-07")))
	assert.True(t, s.IsCustom())
	assert.False(t, s.Is7())
	assert.False(t, s.Is30())

	s.Select30()
	assert.True(t, s.Is30())
	assert.False(t, s.IsCustom())
	_, _, ok := s.Custom()
	assert.False(t, ok, "choosing a fixed window clears the custom range")
	assert.Empty(t, s.StartDate())

	s.Select7()
	assert.True(t, s.Is7())
	assert.False(t, s.Is30())
}

func TestSelectCustomRejectsReversedRange(t *testing.T) {
	s := Default()
	err := s.SelectCustom(day("2024-03-08"), day("2024-03-07"))
	require.ErrorIs(t, err, ErrInvalidRange)
	assert.True(t, s.Is7(), "a rejected range leaves the selection alone")

	require.NoError(t, s.SelectCustom(day("2024-03-07"), day("2024-03-07")))
}

func TestSelectionParams(t *testing.T) {
	s := Default()
	assert.Equal(t, "range=7", s.Params().Encode())
	s.Select30()
	assert.Equal(t, "range=30", s.Params().Encode())
	require.NoError(t, s.SelectCustom(day("2024-03-01"), day("2024-03-07")))
	assert.Equal(t, "endDate=2024-03-07&startDate=2024-03-01", s.Params().Encode())
	assert.Equal(t, "2024-03-01..2024-03-07", s.Key())
}

func TestParseSelection(t *testing.T) {
	current := Default()
	current.Select30()

	sel, ok, err := ParseSelection(url.Values{}, current)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, sel.Is30())

	sel, ok, err = ParseSelection(url.Values{"range": {"7d"}}, current)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, sel.Is7())

	sel, ok, err = ParseSelection(url.Values{"startDate": {"2024-03-01"}, "endDate": {"2024-03-05"}, "range": {"7"}}, current)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, sel.IsCustom(), "explicit dates win over a range")

	for name, q := range map[string]url.Values{
		"missing end": {"startDate": {"2024-03-01"}},
		"bad date":    {"startDate": {"03/01"}, "endDate": {"2024-03-05"}},
		"reversed":    {"startDate": {"2024-03-06"}, "endDate": {"2024-03-05"}},
		"bad range":   {"range": {"14"}},
	} {
		t.Run(name, func(t *testing.T) {
			sel, ok, err := ParseSelection(q, current)
			require.Error(t, err)
			assert.False(t, ok)
			assert.True(t, sel.Is30())
		})
	}
}
