package schemas_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/sherpa-cli/api/schemas"
)

func validEpisode() schemas.Episode {
	return schemas.Episode{
		InitialURL: "https://www.example.com/start",
		ScreenW:    1440,
		ScreenH:    900,
		CreatedAt:  time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		Steps: []schemas.Step{
			{Index: 0, Screenshot: "step_0.png", Action: schemas.NewNavigate("https://www.example.com"), Timestamp: 1760000000000},
			{Index: 1, Screenshot: "step_1.png", Action: schemas.NewClick(640, 400), Timestamp: 1760000001500},
			{Index: 2, Screenshot: "step_2.png", Action: schemas.NewTypeText("sherpa"), Timestamp: 1760000003000},
		},
	}
}

func TestEpisodeValidate(t *testing.T) {
	t.Run("accepts a well-formed episode", func(t *testing.T) {
		ep := validEpisode()
		assert.NoError(t, ep.Validate())
	})

	t.Run("accepts an episode with no steps", func(t *testing.T) {
		ep := validEpisode()
		ep.Steps = nil
		assert.NoError(t, ep.Validate())
	})

	t.Run("requires an initial url", func(t *testing.T) {
		ep := validEpisode()
		ep.InitialURL = ""
		assert.Error(t, ep.Validate())
	})

	t.Run("requires positive screen geometry", func(t *testing.T) {
		ep := validEpisode()
		ep.ScreenH = 0
		assert.Error(t, ep.Validate())
	})

	t.Run("indices must start at zero", func(t *testing.T) {
		ep := validEpisode()
		for i := range ep.Steps {
			ep.Steps[i].Index++
		}
		assert.Error(t, ep.Validate())
	})

	t.Run("indices must be strictly increasing", func(t *testing.T) {
		ep := validEpisode()
		ep.Steps[2].Index = 1
		assert.Error(t, ep.Validate())

		ep = validEpisode()
		ep.Steps[2].Index = 0
		assert.Error(t, ep.Validate())
	})

	t.Run("gaps in indices are rejected as non-contiguous only when decreasing", func(t *testing.T) {
		// Strict monotonicity is the invariant; a gap after a crash-truncated
		// write is still loadable.
		ep := validEpisode()
		ep.Steps[2].Index = 5
		assert.NoError(t, ep.Validate())
	})

	t.Run("invalid action fails the episode", func(t *testing.T) {
		ep := validEpisode()
		ep.Steps[1].Action = schemas.Action{Type: "hover"}
		assert.Error(t, ep.Validate())
	})
}

func TestEpisodeRoundTrip(t *testing.T) {
	ep := validEpisode()
	data, err := json.MarshalIndent(&ep, "", "  ")
	require.NoError(t, err)

	var got schemas.Episode
	require.NoError(t, json.Unmarshal(data, &got))
	require.NoError(t, got.Validate())

	if diff := cmp.Diff(ep, got); diff != "" {
		t.Fatalf("episode changed across serialization (-want +got):\n%s", diff)
	}
}

func TestEpisodeHost(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://www.Example.COM/path?q=1", "www.example.com"},
		{"https://shop.example.org:8443/", "shop.example.org"},
		{"not a url at all \x7f", ""},
		{"", ""},
	}
	for _, tc := range cases {
		ep := schemas.Episode{InitialURL: tc.url}
		assert.Equal(t, tc.want, ep.Host(), "url %q", tc.url)
	}
}

func TestHostAllowed(t *testing.T) {
	allow := []string{"example.com", ".trusted.org"}

	t.Run("exact and subdomain matches", func(t *testing.T) {
		assert.True(t, schemas.HostAllowed("example.com", allow))
		assert.True(t, schemas.HostAllowed("www.example.com", allow))
		assert.True(t, schemas.HostAllowed("deep.sub.example.com", allow))
		assert.True(t, schemas.HostAllowed("api.trusted.org", allow))
	})

	t.Run("suffix match respects label boundaries", func(t *testing.T) {
		assert.False(t, schemas.HostAllowed("evilexample.com", allow))
		assert.False(t, schemas.HostAllowed("example.com.attacker.net", allow))
	})

	t.Run("case insensitive", func(t *testing.T) {
		assert.True(t, schemas.HostAllowed("WWW.EXAMPLE.COM", allow))
	})

	t.Run("empty allowlist permits everything", func(t *testing.T) {
		assert.True(t, schemas.HostAllowed("anything.net", nil))
	})
}
