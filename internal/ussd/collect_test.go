package ussd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mudhumeni-backend/internal/store"
)

var soilFields = []string{"nitrogen", "phosphorus", "potassium", "temperature", "humidity", "ph", "rainfall"}

func TestCollect(t *testing.T) {
	t.Run("all valid", func(t *testing.T) {
		c := Collect(soilFields, []string{"90", "42", "43", "20.8", "82", "6.5", "202.9"})
		assert.True(t, c.Complete)
		assert.Equal(t, 7, c.Consumed)
		assert.Empty(t, c.Notice)
		assert.Equal(t, store.FieldValue{Name: "rainfall", Value: 202.9}, c.Values[6])
	})

	t.Run("out of range holds the index", func(t *testing.T) {
		c := Collect(soilFields, []string{"90", "42", "43", "51"})
		assert.False(t, c.Complete)
		assert.Equal(t, 3, c.Next())
		assert.Equal(t, "invalid_temperature", c.Notice)
	})

	t.Run("non numeric", func(t *testing.T) {
		c := Collect(soilFields, []string{"lots"})
		assert.Equal(t, 0, c.Next())
		assert.Equal(t, "invalid_input", c.Notice)
	})

	t.Run("notice clears on next valid value", func(t *testing.T) {
		c := Collect(soilFields, []string{"-1", "10"})
		assert.Equal(t, 1, c.Next())
		assert.Empty(t, c.Notice)
	})

	t.Run("bounds are inclusive", func(t *testing.T) {
		c := Collect(soilFields, []string{"0", "150", "150", "50", "100", "14", "5000"})
		assert.True(t, c.Complete)
	})

	t.Run("stops when complete", func(t *testing.T) {
		c := Collect([]string{"ph"}, []string{"7", "8"})
		assert.True(t, c.Complete)
		assert.Equal(t, 1, c.Consumed)
	})

	t.Run("rejects non finite", func(t *testing.T) {
		c := Collect([]string{"ph"}, []string{"NaN"})
		assert.Equal(t, "invalid_input", c.Notice)
	})
}

func TestCheckField(t *testing.T) {
	assert.NoError(t, CheckField("humidity", 55))
	err := CheckField("rainfall", 6000)
	if assert.Error(t, err) {
		assert.Equal(t, "rainfall must be between 0 and 5000 mm", err.Error())
	}
	assert.Error(t, CheckField("salinity", 1))
}
