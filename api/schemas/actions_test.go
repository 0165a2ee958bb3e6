package schemas_test

import (
	"encoding/json"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/sherpa-cli/api/schemas"
)

func TestParseAction(t *testing.T) {
	t.Run("valid payloads", func(t *testing.T) {
		cases := []struct {
			name string
			json string
			want schemas.Action
		}{
			{"click", `{"type":"click","x":120.5,"y":340}`, schemas.NewClick(120.5, 340)},
			{"type", `{"type":"type","text":"hello world"}`, schemas.NewTypeText("hello world")},
			{"type empty text", `{"type":"type","text":""}`, schemas.NewTypeText("")},
			{"scroll", `{"type":"scroll","dx":0,"dy":-250}`, schemas.NewScroll(0, -250)},
			{"key", `{"type":"key","code":"Enter"}`, schemas.NewKey("Enter")},
			{"wait", `{"type":"wait","ms":500}`, schemas.NewWait(500)},
			{"navigate", `{"type":"navigate","url":"https://example.com"}`, schemas.NewNavigate("https://example.com")},
			{"done", `{"type":"done"}`, schemas.NewDone()},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				got, err := schemas.ParseAction([]byte(tc.json))
				require.NoError(t, err)
				assert.Equal(t, tc.want, got)
			})
		}
	})

	t.Run("rejected payloads", func(t *testing.T) {
		cases := []struct {
			name string
			json string
		}{
			{"unknown type", `{"type":"hover","x":1,"y":2}`},
			{"missing type", `{"x":1,"y":2}`},
			{"click without x", `{"type":"click","y":2}`},
			{"click without y", `{"type":"click","x":1}`},
			{"type without text", `{"type":"type"}`},
			{"scroll without dy", `{"type":"scroll","dx":5}`},
			{"key without code", `{"type":"key"}`},
			{"key with empty code", `{"type":"key","code":""}`},
			{"wait without ms", `{"type":"wait"}`},
			{"negative wait", `{"type":"wait","ms":-10}`},
			{"navigate without url", `{"type":"navigate"}`},
			{"navigate with empty url", `{"type":"navigate","url":""}`},
			{"not json", `click 100 200`},
			{"wrong field type", `{"type":"click","x":"left","y":2}`},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := schemas.ParseAction([]byte(tc.json))
				assert.Error(t, err)
			})
		}
	})
}

func TestActionRoundTrip(t *testing.T) {
	actions := []schemas.Action{
		schemas.NewClick(0, 0),
		schemas.NewClick(719.5, 449.25),
		schemas.NewTypeText("multi\nline"),
		schemas.NewScroll(-10, 300),
		schemas.NewKey("Escape"),
		schemas.NewWait(0),
		schemas.NewNavigate("https://example.com/a?b=c"),
		schemas.NewDone(),
	}
	for _, a := range actions {
		data, err := json.Marshal(a)
		require.NoError(t, err, "marshal %s", a.Type)

		got, err := schemas.ParseAction(data)
		require.NoError(t, err, "parse %s", a.Type)
		assert.Equal(t, a, got)
	}
}

func TestActionCoordinates(t *testing.T) {
	t.Run("only click carries coordinates", func(t *testing.T) {
		x, y, ok := schemas.NewClick(12, 34).Coordinates()
		require.True(t, ok)
		assert.Equal(t, 12.0, x)
		assert.Equal(t, 34.0, y)

		_, _, ok = schemas.NewScroll(12, 34).Coordinates()
		assert.False(t, ok)
		_, _, ok = schemas.NewDone().Coordinates()
		assert.False(t, ok)
	})

	t.Run("with coordinates replaces the click target", func(t *testing.T) {
		moved := schemas.NewClick(1, 2).WithCoordinates(30, 40)
		x, y, ok := moved.Coordinates()
		require.True(t, ok)
		assert.Equal(t, 30.0, x)
		assert.Equal(t, 40.0, y)
	})

	t.Run("with coordinates is a no-op otherwise", func(t *testing.T) {
		a := schemas.NewKey("Tab")
		assert.Equal(t, a, a.WithCoordinates(30, 40))
	})
}

func TestActionValidate(t *testing.T) {
	t.Run("tag must match payload", func(t *testing.T) {
		a := schemas.Action{Type: schemas.ActionClick, Params: schemas.WaitParams{Ms: 1}}
		assert.Error(t, a.Validate())
	})

	t.Run("nil params", func(t *testing.T) {
		a := schemas.Action{Type: schemas.ActionClick}
		assert.Error(t, a.Validate())
	})

	t.Run("non-finite coordinates", func(t *testing.T) {
		data, err := json.Marshal(map[string]any{"type": "click", "x": 1.0, "y": 2.0})
		require.NoError(t, err)
		_, perr := schemas.ParseAction(data)
		assert.NoError(t, perr)

		// NaN cannot appear in JSON, but hand-built actions are checked too.
		assert.Error(t, schemas.ClickParams{X: 1, Y: nan()}.Validate())
	})
}

func nan() float64 {
	var zero float64
	return zero / zero
}

// FuzzParseAction exercises the action decoder with arbitrary bytes. The
// parser must never panic, and anything it accepts must validate.
func FuzzParseAction(f *testing.F) {
	f.Add([]byte(`{"type":"click","x":100,"y":200}`))
	f.Add([]byte(`{"type":"done"}`))
	f.Add([]byte(`{"type":"wait","ms":-1}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`[]`))

	f.Fuzz(func(t *testing.T, data []byte) {
		a, err := schemas.ParseAction(data)
		if err != nil {
			return
		}
		if verr := a.Validate(); verr != nil {
			t.Fatalf("parser accepted an invalid action %+v: %v", a, verr)
		}
	})
}

// FuzzActionMarshal builds structured actions from fuzzed bytes and checks
// that every marshalable action survives a round trip.
func FuzzActionMarshal(f *testing.F) {
	f.Fuzz(func(t *testing.T, data []byte) {
		fuzzConsumer := fuzz.NewConsumer(data)

		var p schemas.ClickParams
		if err := fuzzConsumer.GenerateStruct(&p); err != nil {
			return
		}
		a := schemas.Action{Type: schemas.ActionClick, Params: p}
		out, err := json.Marshal(a)
		if err != nil {
			return // non-finite coordinates are rejected at marshal time
		}
		got, err := schemas.ParseAction(out)
		if err != nil {
			t.Fatalf("round trip failed for %+v: %v", a, err)
		}
		if got != a {
			t.Fatalf("round trip changed the action: %+v -> %+v", a, got)
		}
	})
}
