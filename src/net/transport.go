package net

// WireMessage is an opaque head message on the wire, tagged with the compact
// ID of the sending party. The payload is the canonical message encoding;
// this package never looks inside it.
type WireMessage struct {
	FromID  uint32
	Payload []byte
}

// Transport provides ordered, authenticated, best-effort point-to-point
// messaging between head parties.
type Transport interface {

	// Listen starts the transport listening.
	Listen()

	// Consumer returns the channel of inbound messages.
	Consumer() <-chan WireMessage

	// LocalAddr is used to return our local address.
	LocalAddr() string

	// Send delivers a message to the party listening at target. Delivery is
	// best effort; per-target ordering is preserved.
	Send(target string, msg WireMessage) error

	// Close permanently closes the transport, stopping any associated
	// goroutines and freeing other resources.
	Close() error
}
