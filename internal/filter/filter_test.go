package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWordFilter(t *testing.T) {
	f := New([]string{"darn", " heck ", ""})

	tests := []struct {
		in   string
		want string
	}{
		{"well darn it", "well **** it"},
		{"DARN and Heck", "**** and ****"},
		{"darned is fine", "darned is fine"},
		{"heck, really", "****, really"},
		{"nothing to see", "nothing to see"},
		{"darn darn", "**** ****"},
		{"darn_it", "darn_it"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Filter(tt.in))
		})
	}
}

func TestEmptyFilterPassesThrough(t *testing.T) {
	assert.Equal(t, "darn", New(nil).Filter("darn"))

	var f *WordFilter
	assert.Equal(t, "darn", f.Filter("darn"))
}

func TestWordFilterNonASCII(t *testing.T) {
	f := New([]string{"блин", "mañana", "straße"})

	tests := []struct {
		in   string
		want string
	}{
		{"ну блин же", "ну **** же"},
		{"БЛИН!", "****!"},
		{"блинчик вкусный", "блинчик вкусный"},
		{"hasta mañana", "hasta ****"},
		{"mañanas", "mañanas"},
		{"die straße.", "die ****."},
		{"ästraße", "ästraße"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Filter(tt.in))
		})
	}
}
