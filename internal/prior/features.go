package prior

import (
	"hash/fnv"

	"github.com/xkilldash9x/sherpa-cli/api/schemas"
)

// DomainBuckets is the fixed cardinality of the URL-host hash. Bucket index
// DomainBuckets itself is the explicit "other" bucket for hosts that cannot
// be determined.
const DomainBuckets = 16

// DomainOther is the bucket for empty or unparseable hosts.
const DomainOther = DomainBuckets

// StepPosition buckets a step into the early, middle, or late third of its
// episode.
type StepPosition int

const (
	PositionEarly StepPosition = iota
	PositionMid
	PositionLate
)

// FeatureVector is the ephemeral, normalized view of one step used during
// aggregation. It is never persisted.
type FeatureVector struct {
	Type schemas.ActionType
	// PrevType is the preceding step's action type, or "" for the first step.
	PrevType schemas.ActionType
	// HasCoords is true when the action targets a screen point; X and Y are
	// then normalized to [0,1] by the screen geometry.
	HasCoords bool
	X, Y      float64
	Position  StepPosition
	// Domain is the bounded-cardinality hash bucket of the episode's initial
	// URL host, or DomainOther.
	Domain int
}

// Extract turns a step into its feature vector. It is pure and deterministic:
// identical inputs always yield an identical vector. episodeLen is the number
// of steps in the enclosing episode and host is that episode's initial URL
// host.
func Extract(step schemas.Step, screenW, screenH, episodeLen int, host string, prev schemas.ActionType) FeatureVector {
	fv := FeatureVector{
		Type:     step.Action.Type,
		PrevType: prev,
		Position: positionBucket(step.Index, episodeLen),
		Domain:   domainBucket(host),
	}
	if x, y, ok := step.Action.Coordinates(); ok {
		fv.HasCoords = true
		fv.X = Normalize(x, screenW)
		fv.Y = Normalize(y, screenH)
	}
	return fv
}

// Normalize maps a pixel coordinate into [0,1] by the screen extent,
// clamping out-of-bounds inputs to the boundary.
func Normalize(px float64, extent int) float64 {
	if extent <= 0 {
		return 0
	}
	n := px / float64(extent)
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

// Denormalize maps a [0,1] coordinate back to pixels.
func Denormalize(n float64, extent int) float64 {
	return n * float64(extent)
}

// positionBucket divides episode length into thirds.
func positionBucket(index, episodeLen int) StepPosition {
	if episodeLen <= 0 {
		return PositionEarly
	}
	switch {
	case index*3 < episodeLen:
		return PositionEarly
	case index*3 < 2*episodeLen:
		return PositionMid
	default:
		return PositionLate
	}
}

// domainBucket hashes a URL host into one of DomainBuckets buckets. Empty
// hosts land in the "other" bucket.
func domainBucket(host string) int {
	if host == "" {
		return DomainOther
	}
	h := fnv.New32a()
	h.Write([]byte(host))
	return int(h.Sum32() % DomainBuckets)
}

// cellIndex maps a normalized coordinate to a grid cell index in [0, n).
func cellIndex(norm float64, n int) int {
	i := int(norm * float64(n))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
