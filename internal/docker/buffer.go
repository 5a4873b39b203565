package docker

import "bytes"

// outputBudget is the byte allowance shared by the buffers of one exec,
// so stdout and stderr together never exceed limit. limit <= 0 means no cap.
type outputBudget struct {
	limit     int64
	used      int64
	truncated bool
}

// cappedBuffer keeps what fits in its budget and silently drops the rest
// so a runaway command cannot exhaust daemon memory.
type cappedBuffer struct {
	buf    bytes.Buffer
	budget *outputBudget
}

func newCappedBuffer(limit int64) *cappedBuffer {
	return &cappedBuffer{budget: &outputBudget{limit: limit}}
}

// newCappedPair returns stdout and stderr buffers drawing on one budget.
func newCappedPair(limit int64) (*cappedBuffer, *cappedBuffer) {
	b := &outputBudget{limit: limit}
	return &cappedBuffer{budget: b}, &cappedBuffer{budget: b}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	bud := b.budget
	if bud.limit <= 0 {
		return b.buf.Write(p)
	}
	room := bud.limit - bud.used
	if room <= 0 {
		bud.truncated = bud.truncated || len(p) > 0
		return len(p), nil
	}
	if int64(len(p)) > room {
		b.buf.Write(p[:room])
		bud.used += room
		bud.truncated = true
		return len(p), nil
	}
	bud.used += int64(len(p))
	return b.buf.Write(p)
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}

// Truncated reports whether any write against the shared budget was cut.
func (b *cappedBuffer) Truncated() bool {
	return b.budget.truncated
}
