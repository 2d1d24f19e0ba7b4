// Package nav drives entities along navigation mesh corridors: it turns
// navigation targets into corridors, interpolates movement segment by
// segment and reports progress to an optional callback.
package nav

import (
	"github.com/go-gl/mathgl/mgl32"

	"realm-nav/server/internal/navmesh"
)

// Tag is a navigation status reported to callbacks.
type Tag string

const (
	TagFoundCorridor       Tag = "FOUND_CORRIDOR"
	TagPathSegmentComplete Tag = "PATH_SEGMENT_COMPLETE"
	TagFinished            Tag = "FINISHED"
	TagInvalidPosition     Tag = "INVALID_POSITION"
	TagPathfindingFailed   Tag = "PATHFINDING_FAILED"
	TagTargetNotFound      Tag = "TARGET_NOT_FOUND"
)

// Terminal reports whether the tag ends navigation towards a target.
func (t Tag) Terminal() bool {
	switch t {
	case TagFinished, TagInvalidPosition, TagPathfindingFailed, TagTargetNotFound:
		return true
	default:
		return false
	}
}

// Callback receives navigation status updates. Errors are logged and
// otherwise ignored.
type Callback interface {
	Notify(tag Tag, pos mgl32.Vec3) error
}

// CallbackFunc adapts a function into a Callback.
type CallbackFunc func(tag Tag, pos mgl32.Vec3) error

func (f CallbackFunc) Notify(tag Tag, pos mgl32.Vec3) error {
	if f == nil {
		return nil
	}
	return f(tag, pos)
}

// Target requests movement to Pos at Speed world units per second. Setting
// it on an entity, new or replacing, starts navigation.
type Target struct {
	Pos      mgl32.Vec3
	Speed    float32
	Callback Callback
}

// PathSegment is the straight leg currently being interpolated.
type PathSegment struct {
	Start    mgl32.Vec3
	End      mgl32.Vec3
	Duration float32
	Elapsed  float32
	Speed    float32
}

// PathCorridor pairs a corridor with the active segment. A nil Segment means
// the next segment is derived on the next advance.
type PathCorridor struct {
	Corridor navmesh.Corridor
	Segment  *PathSegment
}
