package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	c := New(
		Item{PizzaID: "p1", Name: "Margherita", Qty: 2, Price: 250},
		Item{PizzaID: "p2", Name: "Veggie Supreme", Qty: 1, Price: 399.5},
	)

	raw, err := Encode(c)
	require.NoError(t, err)

	got, ok := Decode(raw)
	require.True(t, ok)
	assert.Equal(t, c.Items(), got.Items())
}

func TestEncode_EmptyCartWritesEmptyArray(t *testing.T) {
	raw, err := Encode(New())
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"items":[]}`, raw)
}

func TestDecode_UntrustedPayloadsAreEmpty(t *testing.T) {
	cases := map[string]string{
		"not json":        "{oops",
		"legacy array":    `[{"pizzaId":"p1","name":"Margherita","qty":1,"price":250}]`,
		"no version":      `{"items":[{"pizzaId":"p1","qty":1,"price":250}]}`,
		"future version":  `{"version":2,"items":[{"pizzaId":"p1","qty":1,"price":250}]}`,
		"zero qty":        `{"version":1,"items":[{"pizzaId":"p1","qty":0,"price":250}]}`,
		"negative price":  `{"version":1,"items":[{"pizzaId":"p1","qty":1,"price":-1}]}`,
		"null":            `null`,
		"empty string":    ``,
		"wrong item type": `{"version":1,"items":"p1"}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			c, ok := Decode(raw)
			assert.False(t, ok)
			require.NotNil(t, c)
			assert.True(t, c.IsEmpty())
		})
	}
}
