// Package channel names the endpoints events travel through: channels are
// pub/sub fan-out points, streams are persistent logs.
package channel

// Endpoint is any named, addressable destination.
type Endpoint interface {
	Name() string
}

// Channel is a pub/sub endpoint. Channels are equal when their names are.
type Channel struct {
	name string
}

func New(name string) Channel {
	return Channel{name: name}
}

func (c Channel) Name() string {
	return c.name
}

func (c Channel) String() string {
	return c.name
}

// Stream is a persistent log endpoint. Streams are equal when their names are.
type Stream struct {
	name string
}

func NewStream(name string) Stream {
	return Stream{name: name}
}

func (s Stream) Name() string {
	return s.name
}

func (s Stream) String() string {
	return s.name
}

// Channels builds channels from names, skipping blanks.
func Channels(names ...string) []Channel {
	channels := make([]Channel, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		channels = append(channels, New(n))
	}

	return channels
}
