package cart

import (
	"context"
	"errors"

	"github.com/angelmondragon/courtside-storefront/internal/commerce"
	"github.com/angelmondragon/courtside-storefront/internal/sessions"
	pkgerrors "github.com/angelmondragon/courtside-storefront/pkg/errors"
)

// outcome is the result of replaying one op against the remote cart.
type outcome struct {
	// session replaces the confirmed state when non-nil.
	session *commerce.Session
	// forget drops the session handle and confirmed lines.
	forget bool
	// handle is a persisted handle the remote has not confirmed yet. It is
	// installed without lines so later syncs keep targeting that cart.
	handle *SessionHandle
	// checked reports that the handle store was read successfully.
	checked   bool
	recreated bool
	err       error
}

func (s *Store) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for s.step() {
		}
	}
}

// step syncs the head of the queue. It reports whether an op was processed.
func (s *Store) step() bool {
	s.mu.Lock()
	if s.closed || len(s.queue) == 0 {
		s.mu.Unlock()
		return false
	}
	o := s.queue[0]
	o.inFlight = true
	confirmed := cloneLines(s.confirmed)
	var session *SessionHandle
	if s.session != nil {
		h := *s.session
		session = &h
	}
	handleKnown := s.handleKnown
	s.status = StatusSyncing
	s.mu.Unlock()

	ctx := s.ctx
	if session != nil {
		ctx = s.logg.WithCartSessionID(ctx, session.ID)
	}
	res := s.execute(ctx, o, confirmed, session, handleKnown)
	if res.err == nil || res.session != nil || res.forget {
		s.persist(ctx, res)
	}
	s.commit(ctx, o, res)
	return true
}

func (s *Store) execute(ctx context.Context, o *op, confirmed []Line, session *SessionHandle, handleKnown bool) outcome {
	if o.kind == opRefresh {
		return s.refresh(ctx, confirmed, session)
	}

	// A mutation must never open a new remote cart while a persisted one may
	// still exist, so an unread handle store is read first.
	checked := handleKnown
	var loaded *SessionHandle
	if session == nil && !handleKnown {
		h, ok, err := s.loadHandle(ctx)
		if err != nil {
			return outcome{err: err}
		}
		checked = true
		if ok {
			loaded = &h
			session = &h
			ctx = s.logg.WithCartSessionID(ctx, h.ID)
		}
	}

	res := s.mutate(ctx, o, confirmed, session)
	if res.err != nil && errors.Is(res.err, commerce.ErrSessionNotFound) {
		s.logg.Warn(ctx, "cart.session_stale")
		res = s.recreate(ctx, o.apply(confirmed))
		loaded = nil
	}
	res.checked = res.checked || checked
	if res.session == nil && !res.forget {
		res.handle = loaded
	}
	return res
}

func (s *Store) mutate(ctx context.Context, o *op, confirmed []Line, session *SessionHandle) outcome {
	switch o.kind {
	case opAdd:
		if session == nil {
			return s.create(ctx, o.apply(confirmed))
		}
		resp, err := s.remote.AddLines(ctx, session.ID, []commerce.LineInput{{VariantID: o.variantID, Quantity: o.quantity}})
		return outcome{session: resp, err: err}

	case opSet:
		i := indexOf(confirmed, o.variantID)
		if session == nil {
			if o.quantity <= 0 {
				return outcome{}
			}
			return s.create(ctx, o.apply(confirmed))
		}
		if i < 0 || confirmed[i].RemoteLineID == "" {
			if o.quantity <= 0 {
				return outcome{}
			}
			resp, err := s.remote.AddLines(ctx, session.ID, []commerce.LineInput{{VariantID: o.variantID, Quantity: o.quantity}})
			return outcome{session: resp, err: err}
		}
		line := confirmed[i]
		if o.quantity <= 0 {
			resp, err := s.removeLine(ctx, session, line)
			return outcome{session: resp, err: err}
		}
		var folded *commerce.Session
		if len(line.extraLineIDs) > 0 {
			// Duplicate remote lines go first so the set lands on one line.
			resp, err := s.remote.RemoveLines(ctx, session.ID, line.extraLineIDs)
			if err != nil {
				return outcome{err: err}
			}
			folded = resp
		}
		resp, err := s.remote.UpdateLineQuantity(ctx, session.ID, line.RemoteLineID, o.quantity)
		if err != nil && folded != nil {
			return outcome{session: folded, err: err}
		}
		return outcome{session: resp, err: err}

	case opClear:
		if session == nil {
			return outcome{}
		}
		if len(confirmed) == 0 {
			// The handle may point at lines this process never confirmed.
			resp, err := s.remote.FetchSession(ctx, session.ID)
			if err != nil {
				return outcome{err: err}
			}
			confirmed = s.linesFrom(resp)
			if len(confirmed) == 0 {
				return outcome{session: resp}
			}
		}
		return s.clear(ctx, confirmed, session)
	}
	return outcome{err: pkgerrors.New(pkgerrors.CodeInternal, "unknown cart operation")}
}

// clear removes every remote line in one call and falls back to one call per
// line so partial failures can be reported line by line.
func (s *Store) clear(ctx context.Context, confirmed []Line, session *SessionHandle) outcome {
	ids := make([]string, 0, len(confirmed))
	for _, l := range confirmed {
		ids = append(ids, l.remoteLineIDs()...)
	}
	resp, err := s.remote.RemoveLines(ctx, session.ID, ids)
	if err == nil || errors.Is(err, commerce.ErrSessionNotFound) {
		return outcome{session: resp, err: err}
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cart.clear_bulk_failed")

	var (
		latest   *commerce.Session
		failures []LineFailure
	)
	for _, l := range confirmed {
		next, err := s.removeLine(ctx, session, l)
		if err != nil {
			if errors.Is(err, commerce.ErrSessionNotFound) {
				return outcome{err: err}
			}
			failures = append(failures, LineFailure{VariantID: l.VariantID, LineID: l.RemoteLineID, Err: err})
			continue
		}
		latest = next
	}
	if len(failures) == 0 {
		return outcome{session: latest}
	}
	return outcome{session: latest, err: newClearError(failures).asTyped()}
}

// removeLine deletes every remote line backing l.
func (s *Store) removeLine(ctx context.Context, session *SessionHandle, l Line) (*commerce.Session, error) {
	if len(l.extraLineIDs) == 0 {
		return s.remote.RemoveLine(ctx, session.ID, l.RemoteLineID)
	}
	return s.remote.RemoveLines(ctx, session.ID, l.remoteLineIDs())
}

func (s *Store) create(ctx context.Context, lines []Line) outcome {
	if len(lines) == 0 {
		return outcome{forget: true}
	}
	resp, err := s.remote.CreateSession(ctx, lineInputs(lines))
	return outcome{session: resp, err: err}
}

// recreate opens a fresh remote cart carrying lines after the old one went stale.
func (s *Store) recreate(ctx context.Context, lines []Line) outcome {
	res := s.create(ctx, lines)
	if res.err != nil {
		return res
	}
	if res.session != nil {
		res.recreated = true
		s.metrics.IncSessionRecreated()
		s.logg.Info(s.logg.WithCartSessionID(ctx, res.session.ID), "cart.session_recreated")
	}
	res.forget = res.session == nil
	return res
}

func (s *Store) refresh(ctx context.Context, confirmed []Line, session *SessionHandle) outcome {
	var loaded *SessionHandle
	if session == nil {
		h, ok, err := s.loadHandle(ctx)
		if err != nil {
			return outcome{err: err}
		}
		if !ok {
			return outcome{checked: true}
		}
		loaded = &h
		session = &h
		ctx = s.logg.WithCartSessionID(ctx, h.ID)
	}
	resp, err := s.remote.FetchSession(ctx, session.ID)
	if err == nil {
		return outcome{session: resp, checked: true}
	}
	if !errors.Is(err, commerce.ErrSessionNotFound) {
		// Keep the handle: the cart behind it is unconfirmed, not gone.
		return outcome{handle: loaded, checked: true, err: err}
	}
	s.logg.Warn(ctx, "cart.session_stale_on_load")
	res := s.recreate(ctx, confirmed)
	res.checked = true
	return res
}

func (s *Store) loadHandle(ctx context.Context) (SessionHandle, bool, error) {
	if s.handles == nil {
		return SessionHandle{}, false, nil
	}
	raw, err := s.handles.Load(ctx, s.visitorID)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			return SessionHandle{}, false, nil
		}
		return SessionHandle{}, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart session handle")
	}
	h, ok := DecodeHandle(raw)
	if !ok {
		s.logg.Warn(ctx, "cart.session_handle_corrupt")
	}
	return h, ok, nil
}

// persist writes the handle through after a sync. Failures are logged; the
// remote cart stays authoritative either way.
func (s *Store) persist(ctx context.Context, res outcome) {
	if s.handles == nil {
		return
	}
	if res.forget {
		if err := s.handles.Delete(ctx, s.visitorID); err != nil && !errors.Is(err, sessions.ErrNotFound) {
			s.logg.Error(ctx, "cart.session_handle_delete_failed", err)
		}
		return
	}
	if res.session == nil {
		return
	}
	value, err := EncodeHandle(SessionHandle{ID: res.session.ID, CheckoutURL: res.session.CheckoutURL}, s.now())
	if err != nil {
		s.logg.Error(ctx, "cart.session_handle_encode_failed", err)
		return
	}
	if err := s.handles.Save(ctx, s.visitorID, value); err != nil {
		s.logg.Error(ctx, "cart.session_handle_save_failed", err)
	}
}

// commit installs the outcome and drops the op. On failure the op's
// optimistic change disappears with it, which is the rollback.
func (s *Store) commit(ctx context.Context, o *op, res outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	switch {
	case res.forget:
		s.confirmed = nil
		s.session = nil
	case res.session != nil:
		s.confirmed = s.linesFrom(res.session)
		s.session = &SessionHandle{ID: res.session.ID, CheckoutURL: res.session.CheckoutURL}
	case res.handle != nil && s.session == nil:
		h := *res.handle
		s.session = &h
		s.unconfirmed = true
	}
	if res.forget || res.session != nil {
		s.unconfirmed = false
	}
	if res.checked || res.forget || res.session != nil {
		s.handleKnown = true
	}

	if len(s.queue) > 0 && s.queue[0] == o {
		s.queue = s.queue[1:]
	}

	if res.err != nil {
		s.status = StatusError
		s.lastErr = res.err
		kind := KindOf(res.err)
		s.metrics.IncRollback(string(kind))
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"op":    o.kind.String(),
			"kind":  string(kind),
			"error": res.err.Error(),
		}), "cart.sync_failed")
	} else {
		s.lastErr = nil
		if len(s.queue) == 0 {
			s.status = StatusIdle
		} else {
			s.status = StatusSyncing
		}
	}
	o.resolve(res.err)
	s.notifyLocked()
}

// linesFrom converts the remote cart into lines, filling display fields from
// the catalog when the remote omitted them.
func (s *Store) linesFrom(session *commerce.Session) []Line {
	lines := make([]Line, 0, len(session.Lines))
	for _, rl := range session.Lines {
		if rl.Quantity < 1 {
			continue
		}
		line := Line{
			VariantID:    rl.VariantID,
			RemoteLineID: rl.ID,
			Slug:         rl.ProductHandle,
			ProductTitle: rl.ProductTitle,
			VariantTitle: rl.VariantTitle,
			ImageURL:     rl.ImageURL,
			Quantity:     rl.Quantity,
			UnitPrice:    rl.UnitPrice,
		}
		if s.resolver != nil && (line.Slug == "" || line.ProductTitle == "") {
			if rv, ok := s.resolver.Lookup(rl.VariantID); ok {
				if line.Slug == "" {
					line.Slug = rv.Slug
				}
				if line.ProductTitle == "" {
					line.ProductTitle = rv.ProductTitle
				}
			}
		}
		if i := indexOf(lines, line.VariantID); i >= 0 {
			lines[i].Quantity += line.Quantity
			lines[i].extraLineIDs = append(lines[i].extraLineIDs, line.RemoteLineID)
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func lineInputs(lines []Line) []commerce.LineInput {
	inputs := make([]commerce.LineInput, 0, len(lines))
	for _, l := range lines {
		inputs = append(inputs, commerce.LineInput{VariantID: l.VariantID, Quantity: l.Quantity})
	}
	return inputs
}
