// Package buffer implements the engine's page buffer pool: a fixed set of
// page-sized slots with a role assigned to each, preallocated once at init
// and reused in place for the life of the engine. This generalizes a
// pager's LRU page cache from a cache keyed by page number to a small
// fixed-role slot table, since this buffer pool never grows or evicts
// after init.
package buffer

import "errors"

// ErrInsufficientBuffers is returned by New when bufferSizeInBlocks is too
// small for the roles the enabled features require.
var ErrInsufficientBuffers = errors.New("buffer: insufficient buffer slots for enabled features")

// Role identifies what a buffer slot is used for.
type Role int

const (
	RoleWrite Role = iota
	RoleRead
	RoleIndexWrite
	RoleIndexRead
	RoleVarWrite
	RoleVarRead
)

func (r Role) String() string {
	switch r {
	case RoleWrite:
		return "write"
	case RoleRead:
		return "read"
	case RoleIndexWrite:
		return "index-write"
	case RoleIndexRead:
		return "index-read"
	case RoleVarWrite:
		return "var-write"
	case RoleVarRead:
		return "var-read"
	default:
		return "unknown"
	}
}

// Options selects which optional roles must be reserved, mirroring the
// USE_INDEX/USE_VDATA feature flags (USE_BMAP reserves no slot).
type Options struct {
	PageSize    int
	TotalSlots  int
	UseIndex    bool
	UseVarData  bool
}

// Pool is a fixed table of page-sized buffers, one per active role. No
// allocation happens on the hot path after New returns: every Slot call
// returns the same backing array for its role.
type Pool struct {
	pageSize int
	slots    map[Role][]byte
}

// New allocates a Pool. The mandatory write and read slots are always
// present; index-write/index-read are reserved when UseIndex is set, and
// var-write/var-read when UseVarData is set. New fails with
// ErrInsufficientBuffers if TotalSlots is smaller than the number of roles
// that end up required.
func New(opts Options) (*Pool, error) {
	roles := []Role{RoleWrite, RoleRead}
	if opts.UseIndex {
		roles = append(roles, RoleIndexWrite, RoleIndexRead)
	}
	if opts.UseVarData {
		roles = append(roles, RoleVarWrite, RoleVarRead)
	}
	if opts.TotalSlots < len(roles) {
		return nil, ErrInsufficientBuffers
	}
	p := &Pool{
		pageSize: opts.PageSize,
		slots:    make(map[Role][]byte, len(roles)),
	}
	for _, r := range roles {
		p.slots[r] = make([]byte, opts.PageSize)
	}
	return p, nil
}

// Slot returns the buffer assigned to role. It panics if role was not
// reserved at construction time, the same programmer-error contract the
// teacher's pager applies to page numbers outside the valid range: a bug in
// the caller, not a recoverable runtime condition.
func (p *Pool) Slot(role Role) []byte {
	s, ok := p.slots[role]
	if !ok {
		panic("buffer: role " + role.String() + " was not reserved")
	}
	return s
}

// Reset zeroes the slot for role in place.
func (p *Pool) Reset(role Role) {
	clear(p.Slot(role))
}

// PageSize returns the configured page size every slot is sized to.
func (p *Pool) PageSize() int {
	return p.pageSize
}
