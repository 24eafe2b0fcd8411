package core

import "fmt"

// IDPool hands out small integer ids, reusing released ones first.
type IDPool struct {
	owners []interface{}
	free   []uint32
}

func NewIDPool() *IDPool {
	return &IDPool{}
}

// Acquire returns a new id for owner.
func (p *IDPool) Acquire(owner interface{}) uint32 {
	if n := len(p.free); n > 0 {
		id := p.free[n-1]
		p.free = p.free[:n-1]
		p.owners[id] = owner
		return id
	}
	p.owners = append(p.owners, owner)
	return uint32(len(p.owners) - 1)
}

// Owner returns the owner of id, or nil when id is not in use.
func (p *IDPool) Owner(id uint32) interface{} {
	if int(id) >= len(p.owners) {
		return nil
	}
	return p.owners[id]
}

func (p *IDPool) Release(id uint32) error {
	if int(id) >= len(p.owners) {
		return fmt.Errorf("id '%d' out of range (max=%d)", id, len(p.owners))
	}
	if p.owners[id] == nil {
		return fmt.Errorf("id '%d' is not in use", id)
	}
	p.owners[id] = nil
	p.free = append(p.free, id)
	return nil
}

// Len is the number of ids in use.
func (p *IDPool) Len() int {
	return len(p.owners) - len(p.free)
}
