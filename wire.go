package streamchat

// WireEvent is a sealed interface for one decoded frame of the backend's
// event stream. Wire events are ephemeral: they exist only long enough to be
// folded into a Mapper.
type WireEvent interface {
	wireEvent()
}

// WireChunk carries a fragment of generated text. Content may be empty.
type WireChunk struct {
	Content string
}

func (WireChunk) wireEvent() {}

// WireDone signals that generation finished.
type WireDone struct{}

func (WireDone) wireEvent() {}

// WireError reports a failure raised by the backend.
type WireError struct {
	Error string
}

func (WireError) wireEvent() {}

// Interface compliance checks.
var (
	_ WireEvent = WireChunk{}
	_ WireEvent = WireDone{}
	_ WireEvent = WireError{}
)
