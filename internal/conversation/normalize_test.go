package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeInput(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ascii", " 3 ", "3"},
		{"arabic indic", "١٢٣", "123"},
		{"extended arabic indic", "۴۵", "45"},
		{"full width", "１０", "10"},
		{"keycap", "5️⃣", "5"},
		{"keycap ten", "🔟", "10"},
		{"circled", "②", "2"},
		{"mixed text", "انتهاء ٤٣٢١", "انتهاء 4321"},
		{"plain words untouched", "Latte please", "Latte please"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeInput(tt.in))
		})
	}
}

func TestReservedTokens(t *testing.T) {
	for _, in := range []string{"0", "إلغاء", "الغاء", "ألغاء", "Cancel", "MENU"} {
		assert.True(t, isResetToken(in), in)
	}
	for _, in := range []string{"00", "cancel order", "1"} {
		assert.False(t, isResetToken(in), in)
	}
	assert.True(t, isDoneToken("تم"))
	assert.True(t, isDoneToken("DONE"))
	assert.False(t, isDoneToken("done!"))
}

func TestParseEndCommand(t *testing.T) {
	tests := []struct {
		in   string
		code string
		ok   bool
	}{
		{"انتهاء 4321", "4321", true},
		{"END 1001", "1001", true},
		{"end  1001", "1001", true},
		{"end", "", false},
		{"end abc", "", false},
		{"end 1001 now", "", false},
		{"finish 1001", "", false},
	}
	for _, tt := range tests {
		code, ok := parseEndCommand(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.code, code, tt.in)
	}
}
