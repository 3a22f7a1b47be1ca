package hal

// Channel is a timer capture/compare channel.
type Channel uint8

const (
	Channel1 Channel = iota + 1
	Channel2
	Channel3
	Channel4
)

// TimerConfig is the time-base init structure. The counter runs from 0 to
// Period inclusive at TIMCLK / (Prescaler + 1).
type TimerConfig struct {
	Prescaler uint32
	Period    uint32
}

// OCMode is the output compare mode.
type OCMode uint8

const (
	OCModePWM1 OCMode = iota
	OCModePWM2
)

// OCConfig configures an output compare channel.
type OCConfig struct {
	Mode       OCMode
	ActiveHigh bool
	Pulse      uint32
}

// PWMTimer is a general purpose timer used for PWM generation.
type PWMTimer interface {
	Init(cfg TimerConfig) error
	ConfigChannel(ch Channel, oc OCConfig) error
	Start(ch Channel) error
	// SetCompare writes the capture/compare register.
	SetCompare(ch Channel, value uint32)
	Compare(ch Channel) uint32
	Period() uint32
}
