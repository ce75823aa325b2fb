package cart

type opKind int

const (
	opAdd opKind = iota
	opSet
	opClear
	opRefresh
)

func (k opKind) String() string {
	switch k {
	case opAdd:
		return "add"
	case opSet:
		return "set"
	case opClear:
		return "clear"
	case opRefresh:
		return "refresh"
	default:
		return "unknown"
	}
}

// op is a queued mutation. For opAdd quantity is a delta, for opSet it is the
// target quantity where zero removes the line.
type op struct {
	kind      opKind
	variantID string
	quantity  int
	line      Line
	inFlight  bool
	waiters   []chan error
}

func (o *op) touches(variantID string) bool {
	return o.kind == opClear || o.kind == opRefresh || o.variantID == variantID
}

// apply returns lines with o applied; lines is not modified.
func (o *op) apply(lines []Line) []Line {
	out := cloneLines(lines)
	switch o.kind {
	case opClear:
		return nil
	case opRefresh:
		return out
	case opAdd:
		if i := indexOf(out, o.variantID); i >= 0 {
			out[i].Quantity += o.quantity
			return out
		}
		line := o.line
		line.Quantity = o.quantity
		line.RemoteLineID = ""
		line.extraLineIDs = nil
		return append(out, line)
	case opSet:
		i := indexOf(out, o.variantID)
		switch {
		case o.quantity <= 0 && i >= 0:
			return append(out[:i], out[i+1:]...)
		case o.quantity <= 0:
			return out
		case i >= 0:
			out[i].Quantity = o.quantity
			return out
		}
		line := o.line
		line.Quantity = o.quantity
		line.RemoteLineID = ""
		line.extraLineIDs = nil
		return append(out, line)
	}
	return out
}

func (o *op) resolve(err error) {
	for _, w := range o.waiters {
		w <- err
	}
	o.waiters = nil
}

// view is confirmed with every pending op applied in queue order.
func view(confirmed []Line, queue []*op) []Line {
	lines := cloneLines(confirmed)
	for _, o := range queue {
		lines = o.apply(lines)
	}
	return lines
}

// coalesce folds a new op into the last pending op touching the same variant
// when that op has not been sent yet. It reports whether the fold happened.
func coalesce(queue []*op, next *op) bool {
	if next.kind != opAdd && next.kind != opSet {
		return false
	}
	var last *op
	for i := len(queue) - 1; i >= 0; i-- {
		if queue[i].touches(next.variantID) {
			last = queue[i]
			break
		}
	}
	if last == nil || last.inFlight {
		return false
	}
	switch {
	case next.kind == opAdd && last.kind == opAdd:
		last.quantity += next.quantity
	case next.kind == opSet && (last.kind == opSet || last.kind == opAdd):
		last.kind = opSet
		last.quantity = next.quantity
		if next.line.VariantID != "" {
			last.line = next.line
		}
	default:
		return false
	}
	last.waiters = append(last.waiters, next.waiters...)
	return true
}
