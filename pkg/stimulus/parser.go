package stimulus

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/alecthomas/participle/v2"

	"github.com/OpenTraceLab/f4demos/pkg/hal"
)

// DefaultAwaitTimeout bounds an await step without a within clause.
const DefaultAwaitTimeout = 10 * time.Second

var parser = participle.MustBuild[File](
	participle.Lexer(ScriptLexer),
	participle.Elide("Comment", "Whitespace"),
	participle.Unquote("String"),
	participle.UseLookahead(2),
)

// Parse reads and validates a script.
func Parse(r io.Reader) (*Script, error) {
	f, err := parser.Parse("", r)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return compile(f)
}

// ParseString parses a script held in memory.
func ParseString(input string) (*Script, error) {
	f, err := parser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return compile(f)
}

// ParseFile parses the script at path.
func ParseFile(path string) (*Script, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	f, err := parser.Parse(path, file)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return compile(f)
}

func compile(f *File) (*Script, error) {
	s := &Script{}
	var last time.Duration
	for _, node := range f.Steps {
		step, err := compileStep(node, last)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Pos.Line, err)
		}
		last = step.At
		s.Steps = append(s.Steps, step)
	}
	return s, nil
}

func compileStep(node *StepNode, last time.Duration) (Step, error) {
	step := Step{Line: node.Pos.Line, At: last}
	if t := node.Timing; t != nil {
		switch {
		case t.At != "":
			at, err := time.ParseDuration(t.At)
			if err != nil {
				return step, err
			}
			if at < last {
				return step, fmt.Errorf("at %s is before the previous step at %s", at, last)
			}
			step.At = at
		case t.After != "":
			d, err := time.ParseDuration(t.After)
			if err != nil {
				return step, err
			}
			step.At = last + d
		}
	}
	action, err := compileAction(node.Action)
	if err != nil {
		return step, err
	}
	step.Action = action
	return step, nil
}

func compileAction(a *ActionNode) (Action, error) {
	switch {
	case a.Press != nil:
		if a.Press.Button {
			return Press{Pin: hal.UserButton}, nil
		}
		pin, err := hal.ParsePin(a.Press.Pin)
		if err != nil {
			return nil, err
		}
		return Press{Pin: pin}, nil
	case a.Set != nil:
		return compileLevel(a.Set)
	case a.CAN != nil && a.CAN.RX != nil:
		return compileCANRx(a.CAN.RX)
	case a.CAN != nil && a.CAN.Error:
		code := hal.CANErrorBusOff
		if a.CAN.ErrorCode != "" {
			v, err := strconv.ParseUint(a.CAN.ErrorCode, 0, 32)
			if err != nil {
				return nil, fmt.Errorf("can error code %q: %w", a.CAN.ErrorCode, err)
			}
			code = uint32(v)
		}
		return CANError{Code: code}, nil
	case a.Wake:
		return Wake{}, nil
	case a.Reset:
		return Reset{}, nil
	case a.Await != nil:
		return compileAwait(a.Await)
	}
	return nil, fmt.Errorf("empty action")
}

func compileLevel(n *SetNode) (SetLevel, error) {
	pin, err := hal.ParsePin(n.Pin)
	if err != nil {
		return SetLevel{}, err
	}
	return SetLevel{Pin: pin, High: n.Level == "high"}, nil
}

func compileCANRx(n *CANRxNode) (Action, error) {
	id, err := strconv.ParseUint(n.ID, 0, 32)
	if err != nil {
		return nil, fmt.Errorf("can id %q: %w", n.ID, err)
	}
	limit := uint64(hal.CANMaxStdID)
	if n.Extended {
		limit = hal.CANMaxExtID
	}
	if id > limit {
		return nil, fmt.Errorf("can id %#x out of range (max %#x)", id, limit)
	}
	frame := hal.CANFrame{ID: uint32(id), Extended: n.Extended, Remote: n.Remote}
	if p := n.Payload; p != nil {
		if p.Text != nil {
			frame.Data = []byte(*p.Text)
		}
		for _, s := range p.Bytes {
			v, err := strconv.ParseUint(s, 0, 8)
			if err != nil {
				return nil, fmt.Errorf("can data byte %q: %w", s, err)
			}
			frame.Data = append(frame.Data, byte(v))
		}
	}
	if len(frame.Data) > hal.CANMaxDLC {
		return nil, fmt.Errorf("can payload of %d bytes exceeds %d", len(frame.Data), hal.CANMaxDLC)
	}
	return CANRx{Frame: frame}, nil
}

func compileAwait(n *AwaitNode) (Action, error) {
	a := Await{Within: DefaultAwaitTimeout}
	if n.Within != "" {
		d, err := time.ParseDuration(n.Within)
		if err != nil {
			return nil, err
		}
		a.Within = d
	}
	t := n.Target
	switch {
	case t.Pin != nil:
		level, err := compileLevel(t.Pin)
		if err != nil {
			return nil, err
		}
		a.Pin = &level
	case t.UART != nil:
		a.UART = t.UART
	case t.Power != "":
		state := map[string]hal.PowerState{
			"run":     hal.PowerRun,
			"stop":    hal.PowerStop,
			"standby": hal.PowerStandby,
		}[t.Power]
		a.Power = &state
	}
	return a, nil
}
