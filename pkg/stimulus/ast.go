package stimulus

import "github.com/alecthomas/participle/v2/lexer"

// File is a parsed script before validation.
type File struct {
	Steps []*StepNode `@@*`
}

// StepNode is one line: an optional timing followed by an action.
// Example: at 20ms can rx 0x123 "TEST"
type StepNode struct {
	Pos    lexer.Position
	Timing *TimingNode `@@?`
	Action *ActionNode `@@`
}

// TimingNode places a step at an offset from the script start, or after
// the previous step.
type TimingNode struct {
	At    string `  "at" @Duration`
	After string `| "after" @Duration`
}

// ActionNode is one of the supported stimuli.
type ActionNode struct {
	Press *PressNode `  "press" @@`
	Set   *SetNode   `| "set" @@`
	CAN   *CANNode   `| "can" @@`
	Wake  bool       `| @"wake"`
	Reset bool       `| @"reset"`
	Await *AwaitNode `| "await" @@`
}

// PressNode pulses the user button or any other pin.
type PressNode struct {
	Button bool   `  @"button"`
	Pin    string `| @Pin`
}

// SetNode drives an input level.
// Example: set PA0 high
type SetNode struct {
	Pin   string `@Pin`
	Level string `@( "high" | "low" )`
}

// CANNode is a CAN bus stimulus. A bus error without a code is bus-off.
type CANNode struct {
	RX        *CANRxNode `  "rx" @@`
	Error     bool       `| @"error"`
	ErrorCode string     `  @( Hex | Int )?`
}

// CANRxNode injects a frame from another node.
// Example: can rx ext 0x1ABCDE [0x01 0x02]
type CANRxNode struct {
	Extended bool         `@"ext"?`
	Remote   bool         `@"rtr"?`
	ID       string       `@( Hex | Int )`
	Payload  *PayloadNode `@@?`
}

// PayloadNode is frame data as text or a byte list.
type PayloadNode struct {
	Text  *string  `  @String`
	Bytes []string `| LBracket @( Hex | Int )* RBracket`
}

// AwaitNode blocks until the board reaches a condition.
// Example: await power standby within 2s
type AwaitNode struct {
	Target *AwaitTargetNode `@@`
	Within string           `( "within" @Duration )?`
}

// AwaitTargetNode is the awaited condition.
type AwaitTargetNode struct {
	Pin   *SetNode `  "pin" @@`
	UART  *string  `| "uart" @String`
	Power string   `| "power" @( "run" | "stop" | "standby" )`
}
