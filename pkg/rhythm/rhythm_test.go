package rhythm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/james-see/melodygen/pkg/rng"
)

func TestTable(t *testing.T) {
	values := Table()
	require.Len(t, values, 16)

	notes, rests := 0, 0
	for _, v := range values {
		if v.IsRest() {
			rests++
		} else {
			notes++
		}
		assert.InDelta(t, v.BaseSec*2, v.Beats, 1e-9, v.Name)
	}
	assert.Equal(t, 8, notes)
	assert.Equal(t, 8, rests)
}

func TestKey(t *testing.T) {
	tests := []struct {
		value Value
		want  string
	}{
		{Value{Kind: KindNote, Name: "dotted eighth"}, "note-dotted-eighth"},
		{Value{Kind: KindRest, Name: "16th rest"}, "rest-16th-rest"},
		{Value{Kind: KindNote, Name: "quarter"}, "note-quarter"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.value.Key())
		})
	}
}

func TestNewPickerOverrides(t *testing.T) {
	p, warnings := NewPicker(map[string]int{
		"note-quarter": 50,
		"rest-16th-rest": 150,
		"note-bogus":   10,
	})
	require.Len(t, warnings, 2)

	byKey := map[string]Value{}
	for _, v := range p.Values() {
		byKey[v.Key()] = v
	}
	assert.Equal(t, 50, byKey["note-quarter"].Weight)
	assert.Equal(t, 100, byKey["rest-16th-rest"].Weight)
	assert.Equal(t, 26, byKey["note-eighth"].Weight)
}

func TestPickFits(t *testing.T) {
	p, _ := NewPicker(nil)
	src := rng.New(7)
	for i := 0; i < 500; i++ {
		v := p.Pick(1.0, src)
		assert.LessOrEqual(t, v.Beats, 1.0+fitTolerance)
	}
}

func TestPickFallbackToShortValues(t *testing.T) {
	p, _ := NewPicker(nil)
	src := rng.New(3)
	for i := 0; i < 200; i++ {
		v := p.Pick(0.1, src)
		assert.LessOrEqual(t, v.Beats, 0.5)
	}
}

func TestPickAllZeroWeights(t *testing.T) {
	overrides := map[string]int{}
	for _, k := range Keys() {
		overrides[k] = 0
	}
	p, warnings := NewPicker(overrides)
	assert.Empty(t, warnings)

	v := p.Pick(4, rng.NewSequence(0.5))
	assert.Equal(t, "quarter", v.Name)
	assert.Equal(t, KindNote, v.Kind)
}

func TestPickSkipsZeroWeight(t *testing.T) {
	overrides := map[string]int{}
	for _, k := range Keys() {
		overrides[k] = 0
	}
	overrides["note-eighth"] = 10
	p, _ := NewPicker(overrides)

	for _, r := range []float64{0, 0.3, 0.999} {
		v := p.Pick(4, rng.NewSequence(r))
		assert.Equal(t, "eighth", v.Name)
	}
}

func TestPickNote(t *testing.T) {
	p, _ := NewPicker(nil)
	src := rng.New(11)
	for i := 0; i < 300; i++ {
		v := p.PickNote(0.75, src)
		assert.False(t, v.IsRest())
		assert.LessOrEqual(t, v.Beats, 0.75+fitTolerance)
	}
}

func TestSeconds(t *testing.T) {
	v := Value{Beats: 1}
	assert.InDelta(t, 0.5, v.Seconds(120), 1e-9)
	assert.InDelta(t, 1.0, v.Seconds(60), 1e-9)
}
