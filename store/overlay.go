package store

// overlay is a tagged, unconfirmed transform stacked on top of the
// confirmed cache value. Staged overlays are resolved strictly on
// mutation completion: rolled back on failure, promoted on success.
// Promoted overlays keep the change visible until the next confirmed
// fetch replaces the base value, then disappear.
type overlay struct {
	tag      string
	apply    func(any) any
	promoted bool
}

// StageOverlay layers a pending transform over the key's confirmed
// value. The transform must not mutate its input in place; reads see
// the confirmed value with every overlay applied in staging order.
func (s *Store) StageOverlay(key Key, tag string, apply func(any) any) {
	if apply == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.ensureLocked(key)
	e.overlays = append(e.overlays, overlay{tag: tag, apply: apply})
}

// PromoteOverlay marks a staged overlay as confirmed by the remote. It
// stays applied until the invalidation-triggered refetch lands, so the
// UI never flickers back to the pre-mutation value.
func (s *Store) PromoteOverlay(key Key, tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.ensureLocked(key)
	for i := range e.overlays {
		if e.overlays[i].tag == tag {
			e.overlays[i].promoted = true
		}
	}
}

// RollbackOverlay removes a staged overlay immediately. Used when the
// mutation it anticipated failed; the confirmed value shows through
// unchanged.
func (s *Store) RollbackOverlay(key Key, tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.ensureLocked(key)
	kept := e.overlays[:0]
	for _, o := range e.overlays {
		if o.tag != tag {
			kept = append(kept, o)
		}
	}
	e.overlays = kept
}

// clearPromotedLocked drops promoted overlays once a confirmed fetch
// has absorbed their effect. Still-pending overlays survive the fetch.
func (s *Store) clearPromotedLocked(e *entry) {
	kept := e.overlays[:0]
	for _, o := range e.overlays {
		if !o.promoted {
			kept = append(kept, o)
		}
	}
	e.overlays = kept
}

func (s *Store) composeLocked(e *entry) any {
	v := e.value
	for _, o := range e.overlays {
		v = o.apply(v)
	}
	return v
}
