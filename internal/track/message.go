package track

// Kind discriminates observer message payloads.
type Kind int

const (
	// KindRow carries one landmark row.
	KindRow Kind = iota + 1
	// KindBlock carries an aggregated movement result over a
	// fixed-size block of frames.
	KindBlock
)

// Block is the per-block aggregation result: the movement value for a
// fixed-size non-overlapping group of consecutive frames, bounded by
// the block's first and last row timestamps.
type Block struct {
	Movement float64 `json:"movement"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
}

// Message is the fire-and-forget envelope delivered to observers. Kind
// selects which payload field is populated. Row carries the landmark
// names alongside the points so consumers need no side channel.
type Message struct {
	Kind      Kind     `json:"kind"`
	SessionID string   `json:"session_id,omitempty"`
	Landmarks []string `json:"landmarks,omitempty"`
	Row       *Row     `json:"row,omitempty"`
	Block     *Block   `json:"block,omitempty"`
}

// Observer receives session output. Send must not block: slow
// consumers drop messages rather than stalling the capture loop.
type Observer interface {
	Send(Message)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Message)

// Send calls the wrapped function.
func (f ObserverFunc) Send(m Message) { f(m) }
