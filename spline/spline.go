// Package spline implements an in-memory piecewise-linear learned index: an
// ordered sequence of (key, logicalPage) control points maintained under a
// bounded interpolation error, using the greedy "shrinking cone"
// construction (as in FITing-Tree / PGM-index). The type's shape (a bounded
// slice with oldest-first eviction and a logger for eviction events) follows
// a small LRU-cache pattern, generalized from a cache keyed by page number
// to a spline keyed by key.
package spline

import (
	"sort"

	"go.uber.org/zap"
)

// Point is one spline control point.
type Point struct {
	Key  int64
	Page uint32
}

// Spline keys are int64 rather than raw bytes because the slope arithmetic
// below needs ordered, subtractable keys; callers with raw byte keys decode
// them to int64 before calling Add/Predict (see embeddb's key codec).
type Spline struct {
	maxError  uint32
	maxPoints int
	points    []Point
	log       *zap.SugaredLogger

	// candidate is the most recent point that has not yet been confirmed as
	// an anchor. anchor is the last confirmed point. lower/upperSlope bound
	// the admissible region for extending the current segment from anchor.
	haveAnchor    bool
	anchor        Point
	haveCandidate bool
	candidate     Point
	lowerSlope    float64
	upperSlope    float64
}

// New returns an empty Spline bounded to maxPoints anchors with an error
// bound of maxError pages.
func New(maxPoints int, maxError uint32, log *zap.SugaredLogger) *Spline {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Spline{maxPoints: maxPoints, maxError: maxError, log: log}
}

// Count returns the number of confirmed anchors.
func (s *Spline) Count() int { return len(s.points) }

// PointAt returns anchor i, 0 <= i < Count().
func (s *Spline) PointAt(i int) Point { return s.points[i] }

func slope(a, b Point) float64 {
	return float64(int64(b.Page)-int64(a.Page)) / float64(b.Key-a.Key)
}

// Add records that key was the first key of a just-sealed data page at the
// given logical page number. Keys must be added in non-decreasing order
// (the same order puts seal pages in).
func (s *Spline) Add(key int64, logicalPage uint32) {
	p := Point{Key: key, Page: logicalPage}

	if !s.haveAnchor {
		s.haveAnchor = true
		s.anchor = p
		s.pushAnchor(p)
		return
	}
	if !s.haveCandidate {
		if key == s.anchor.Key {
			// Keys only need to be non-decreasing, not distinct, so the
			// second sealed page can legally share its first key with the
			// first. Replace the anchor's page (it is still the only
			// committed point, so also update it in s.points) rather than
			// opening a candidate with a zero key delta in recomputeBounds.
			s.anchor = p
			s.points[len(s.points)-1] = p
			return
		}
		s.haveCandidate = true
		s.candidate = p
		s.recomputeBounds()
		return
	}
	if key == s.candidate.Key {
		// Same non-decreasing-not-distinct case as above, once a candidate
		// is already open: replace it rather than divide by zero.
		s.candidate = p
		return
	}

	lowAtKey := float64(s.anchor.Page) + s.lowerSlope*float64(key-s.anchor.Key)
	highAtKey := float64(s.anchor.Page) + s.upperSlope*float64(key-s.anchor.Key)
	if float64(logicalPage) >= lowAtKey && float64(logicalPage) <= highAtKey {
		// Still within the cone: extend the candidate and tighten the
		// bounds so future points are checked against the narrower corridor.
		s.candidate = p
		upperBoundSlope := (float64(logicalPage)+float64(s.maxError) - float64(s.anchor.Page)) / float64(key-s.anchor.Key)
		lowerBoundSlope := (float64(logicalPage)-float64(s.maxError) - float64(s.anchor.Page)) / float64(key-s.anchor.Key)
		if upperBoundSlope < s.upperSlope {
			s.upperSlope = upperBoundSlope
		}
		if lowerBoundSlope > s.lowerSlope {
			s.lowerSlope = lowerBoundSlope
		}
		return
	}

	// Cone violated: the candidate becomes the new anchor, and a fresh cone
	// starts from it through the current point.
	s.pushAnchor(s.candidate)
	s.anchor = s.candidate
	s.candidate = p
	s.recomputeBounds()
}

func (s *Spline) recomputeBounds() {
	key, page := s.candidate.Key, s.candidate.Page
	s.upperSlope = (float64(page) + float64(s.maxError) - float64(s.anchor.Page)) / float64(key-s.anchor.Key)
	s.lowerSlope = (float64(page) - float64(s.maxError) - float64(s.anchor.Page)) / float64(key-s.anchor.Key)
}

func (s *Spline) pushAnchor(p Point) {
	if len(s.points) == s.maxPoints {
		evicted := s.points[0]
		s.points = s.points[1:]
		s.log.Debugw("spline anchor evicted to stay within point budget", "key", evicted.Key, "page", evicted.Page)
	}
	s.points = append(s.points, p)
}

// EvictBefore drops leading anchors whose page is older than
// oldestLivePage, i.e. anchors that now point at a physically overwritten
// page. Anchors are kept sorted by page (monotonic with key), so this only
// ever trims a prefix.
func (s *Spline) EvictBefore(oldestLivePage uint32) {
	i := 0
	for i < len(s.points) && s.points[i].Page < oldestLivePage {
		i++
	}
	if i > 0 {
		s.log.Debugw("spline anchors evicted: referenced pages were overwritten", "count", i, "oldestLivePage", oldestLivePage)
		s.points = s.points[i:]
	}
}

// Predict returns the [lo, hi] logical-page window an intermediate key is
// expected to fall within, clamped by the configured error bound and by the
// caller-supplied live logical-page window [liveLow, liveHigh]. ok is false
// if the spline has no anchors yet.
//
// Linear interpolation between two successive points predicts any
// intermediate key's page within ±maxError. This includes the "open"
// segment beyond the last committed anchor, still bounded by the cone
// currently being grown (s.anchor / s.candidate): that segment has not been
// committed to s.points yet only because it is not yet known whether it
// will be extended further, not because its bound is any less valid.
// Predict therefore folds the live candidate into its search array rather
// than consulting only committed anchors.
func (s *Spline) Predict(key int64, liveLow, liveHigh uint32) (lo, hi uint32, ok bool) {
	if !s.haveAnchor {
		return 0, 0, false
	}
	pts := s.points
	if s.haveCandidate && (len(pts) == 0 || s.candidate.Key > pts[len(pts)-1].Key) {
		extended := make([]Point, len(pts), len(pts)+2)
		copy(extended, pts)
		if len(pts) == 0 {
			// EvictBefore dropped every committed anchor, s.anchor included;
			// the open segment still starts at s.anchor.
			extended = append(extended, s.anchor)
		}
		pts = append(extended, s.candidate)
	}

	var predicted float64
	if len(pts) == 1 {
		predicted = float64(pts[0].Page)
	} else {
		i := sort.Search(len(pts), func(i int) bool { return pts[i].Key > key }) - 1
		if i < 0 {
			i = 0
		}
		if i > len(pts)-2 {
			i = len(pts) - 2
		}
		m := slope(pts[i], pts[i+1])
		predicted = float64(pts[i].Page) + m*float64(key-pts[i].Key)
	}

	low := predicted - float64(s.maxError)
	high := predicted + float64(s.maxError)
	if low < float64(liveLow) {
		low = float64(liveLow)
	}
	if high > float64(liveHigh) {
		high = float64(liveHigh)
	}
	if low > high {
		low = high
	}
	if low < 0 {
		low = 0
	}
	return uint32(low), uint32(high), true
}
