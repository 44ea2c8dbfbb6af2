package ledger

import "time"

// IDSource hands out strictly increasing ids derived from the wall clock in
// milliseconds. Two calls within the same millisecond get consecutive ids.
type IDSource struct {
	now  func() time.Time
	last int64
}

// NewIDSource returns a source reading time from now, or time.Now when nil.
func NewIDSource(now func() time.Time) *IDSource {
	if now == nil {
		now = time.Now
	}
	return &IDSource{now: now}
}

// Next returns a fresh id greater than every id previously returned or observed.
func (s *IDSource) Next() int64 {
	id := s.now().UnixMilli()
	if id <= s.last {
		id = s.last + 1
	}
	s.last = id
	return id
}

// Observe raises the floor so later ids do not collide with existing ones.
func (s *IDSource) Observe(id int64) {
	if id > s.last {
		s.last = id
	}
}
