package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		want     string
	}{
		{"plain", "Thank you!", "Thank you!"},
		{"paragraphs", "<p>Latte</p><p>Oat milk</p>", "Latte\nOat milk"},
		{"entities", "<p>Tom &amp; Jerry&#39;s</p>", "Tom & Jerry's"},
		{"whitespace", "<div>\n   Large\n\n   mocha  </div>", "Large mocha"},
		{"table", "<table><tr><td>Size</td><td>Large</td></tr><tr><td>Total</td><td>$4.50</td></tr></table>", "Size Large\nTotal $4.50"},
		{"skips style and script", "<style>.a{color:red}</style><p>Cappuccino</p><script>alert(1)</script>", "Cappuccino"},
		{"line breaks", "Name: Sam<br>Extras: whipped cream", "Name: Sam\nExtras: whipped cream"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.fragment))
		})
	}
}
