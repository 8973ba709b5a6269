package ussd

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	cases := []struct {
		name string
		text string
		max  int
		want string
	}{
		{"fits", "Plant after 25mm rain.", 140, "Plant after 25mm rain."},
		{"exact fit", "abcde", 5, "abcde"},
		{"whole sentences", "Plant early. Weed often. Harvest dry.", 26, "Plant early. Weed often."},
		{"first sentence only", "Plant early. Weed often. Harvest dry.", 14, "Plant early."},
		{"words", "Maize needs between five and eight hundred millimetres of rain", 20, "Maize needs..."},
		{"hard cut", "Supercalifragilisticexpialidocious", 10, "Superca..."},
		{"tiny max", "abcdef", 2, "ab"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Format(tc.text, tc.max))
		})
	}
}

func TestFormatNeverExceedsMax(t *testing.T) {
	texts := []string{
		longAdvice,
		strings.Repeat("word ", 80),
		strings.Repeat("x", 300),
		"Mvura inonaya zvakanyanya. Dyara chibage mushure memvura yekutanga. Shandisa fetiraiza.",
		strings.Repeat("°C ", 100),
		"a. b. c. d. e. f. g. h. i. j. k.",
	}
	for _, text := range texts {
		for max := 0; max <= 160; max++ {
			got := Format(text, max)
			assert.LessOrEqual(t, utf8.RuneCountInString(got), max, "max=%d text=%q", max, text)
			assert.True(t, utf8.ValidString(got))
			if utf8.RuneCountInString(text) <= max {
				assert.Equal(t, text, got)
			}
		}
	}
}

func TestFormatKeepsWordBoundaries(t *testing.T) {
	text := "Irrigate when half of the available soil moisture is depleted during flowering"
	got := Format(text, 30)
	assert.True(t, strings.HasSuffix(got, "..."))
	for _, w := range strings.Fields(strings.TrimSuffix(got, "...")) {
		assert.Contains(t, strings.Fields(text), w)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	assert.Equal(t, "CON hi", Continue("hi").String())
	assert.Equal(t, "END bye", End("bye").String())
	assert.Equal(t, Continue("a\nb"), ParseResponse("CON a\nb"))
	assert.Equal(t, End("x"), ParseResponse("END x"))
	assert.Equal(t, End("garbage"), ParseResponse("garbage"))
}
