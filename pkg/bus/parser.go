package bus

// Parser is the receive state machine. It is fed one wire byte at a time
// and must not be used from multiple goroutines at once.
type Parser struct {
	state   parseState
	buf     []byte
	high    byte
	hasHigh bool
}

// Event is what a single parsing step produced.
type Event int

const (
	// EventNone means the byte was consumed without anything to report.
	EventNone Event = iota
	// EventPacket means a frame was completed and decoded.
	EventPacket
	// EventAck means an ACK signal was received.
	EventAck
	// EventNack means a NACK signal was received.
	EventNack
	// EventDropped means malformed input was discarded.
	EventDropped
	// EventIgnored means the byte was not part of any frame.
	EventIgnored
)

var eventNames = map[Event]string{
	EventNone:    "none",
	EventPacket:  "packet",
	EventAck:     "ack",
	EventNack:    "nack",
	EventDropped: "dropped",
	EventIgnored: "ignored",
}

// String implements fmt.Stringer.
func (e Event) String() string {
	if s, ok := eventNames[e]; ok {
		return s
	}
	return "unknown"
}

// DropReason tells why input was discarded.
type DropReason int

const (
	// DropNone is used when nothing was dropped.
	DropNone DropReason = iota
	// DropOrphanLow is a low nibble without a pending high nibble.
	DropOrphanLow
	// DropOverwrittenHigh is a high nibble replaced before its low nibble arrived.
	DropOverwrittenHigh
	// DropDanglingHigh is a high nibble still pending when the frame ended.
	DropDanglingHigh
	// DropShortFrame is a frame ended with less than a full header.
	DropShortFrame
)

var dropReasonNames = map[DropReason]string{
	DropNone:            "none",
	DropOrphanLow:       "orphan low nibble",
	DropOverwrittenHigh: "overwritten high nibble",
	DropDanglingHigh:    "dangling high nibble",
	DropShortFrame:      "short frame",
}

// String implements fmt.Stringer.
func (r DropReason) String() string {
	if s, ok := dropReasonNames[r]; ok {
		return s
	}
	return "unknown"
}

// ParseResult indicates the result after one parsing step.
// Drop may be set along with EventPacket when a dangling high nibble
// was discarded at the end of an otherwise complete frame.
type ParseResult struct {
	Event  Event
	Drop   DropReason
	Packet *Packet
}

type parseState int

const (
	stateIdle  parseState = iota // waiting for START
	stateFrame                   // inside a frame
)

// InFrame indicates a START has been seen and the frame is not finished.
func (p *Parser) InFrame() bool {
	return p.state == stateFrame
}

// Buffered returns the number of reassembled bytes held for the current frame.
func (p *Parser) Buffered() int {
	return len(p.buf)
}

// Reset discards any partial frame.
func (p *Parser) Reset() {
	p.state = stateIdle
	p.buf = p.buf[:0]
	p.hasHigh = false
}

// Parse consumes one byte.
func (p *Parser) Parse(b byte) (pr ParseResult) {
	switch b {
	case START:
		// always restarts, a partial frame is discarded
		p.Reset()
		p.state = stateFrame
		return
	case END:
		return p.endFrame()
	case ACK:
		pr.Event = EventAck
		return
	case NACK:
		pr.Event = EventNack
		return
	}

	if p.state != stateFrame {
		pr.Event = EventIgnored
		return
	}

	switch b & markerMask {
	case msnMarker:
		if p.hasHigh {
			pr.Event, pr.Drop = EventDropped, DropOverwrittenHigh
		}
		p.high, p.hasHigh = b&nibbleMask, true
	case lsnMarker:
		if !p.hasHigh {
			pr.Event, pr.Drop = EventDropped, DropOrphanLow
			return
		}
		p.buf = append(p.buf, p.high<<4|b&nibbleMask)
		p.hasHigh = false
	default:
		pr.Event = EventIgnored
	}
	return
}

func (p *Parser) endFrame() (pr ParseResult) {
	if p.state != stateFrame {
		pr.Event = EventIgnored
		return
	}
	dangling := p.hasHigh
	pkt, err := Decode(p.buf)
	p.Reset()
	switch {
	case err != nil:
		pr.Event, pr.Drop = EventDropped, DropShortFrame
	case dangling:
		// the frame is intact up to the last complete byte
		pr.Event, pr.Packet = EventPacket, pkt
		pr.Drop = DropDanglingHigh
	default:
		pr.Event, pr.Packet = EventPacket, pkt
	}
	return
}
