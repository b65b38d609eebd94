// Package engine defines the wire contract between the bridge and a thermal
// engine process, and launches that process.
//
// The engine speaks newline-delimited JSON over its stdio. It first announces a
// catalog of output variables and actuators, then sends one step message per
// timestep and blocks until the bridge answers with an actuate message. A done
// message ends the run period.
package engine

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// MessageType discriminates protocol messages.
type MessageType string

const (
	TypeCatalog MessageType = "catalog"
	TypeStep    MessageType = "step"
	TypeActuate MessageType = "actuate"
	TypeDone    MessageType = "done"
)

// Variable is an output variable the engine can report.
type Variable struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

// Actuator is a value the engine lets the bridge override.
type Actuator struct {
	Component string `json:"component"`
	Control   string `json:"control"`
	Key       string `json:"key"`
}

// Write sets the actuator at Handle to Value for the current timestep.
type Write struct {
	Handle int     `json:"handle"`
	Value  float64 `json:"value"`
}

// Message is one protocol frame. Fields are populated according to Type.
type Message struct {
	Type MessageType `json:"type"`

	// catalog
	Variables []Variable `json:"variables,omitempty"`
	Actuators []Actuator `json:"actuators,omitempty"`

	// step
	Warmup        bool      `json:"warmup,omitempty"`
	Hour          float64   `json:"hour"`
	TimestepHours float64   `json:"timestep_hours,omitempty"`
	Values        []float64 `json:"values,omitempty"`

	// actuate
	Writes []Write `json:"writes,omitempty"`
}

// UnmarshalJSON decodes values leniently: null and the non-finite spellings
// "NaN", "Infinity" and "-Infinity" become non-finite floats, which consumers
// treat as a missing reading.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	aux := struct {
		*plain
		Values []number `json:"values,omitempty"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Values != nil {
		m.Values = make([]float64, len(aux.Values))
		for i, v := range aux.Values {
			m.Values[i] = float64(v)
		}
	}
	return nil
}

type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	switch s := string(b); s {
	case "null", `"NaN"`:
		*n = number(math.NaN())
	case `"Infinity"`, `"+Infinity"`:
		*n = number(math.Inf(1))
	case `"-Infinity"`:
		*n = number(math.Inf(-1))
	default:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("value %s is not a number", truncate(s, 20))
		}
		*n = number(f)
	}
	return nil
}

// FrameError reports a line that could not be decoded into a message. Type
// is the frame's type when it could still be read from the line.
type FrameError struct {
	Type MessageType
	Line string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("decoding engine %s frame: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("decoding engine frame %q: %v", e.Line, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

var typeField = regexp.MustCompile(`"type"\s*:\s*"([a-z_]+)"`)

// sniffType pulls the type out of a line that does not decode as a whole.
func sniffType(line string) MessageType {
	if m := typeField.FindStringSubmatch(line); m != nil {
		return MessageType(m[1])
	}
	return ""
}

// nonFinite are the bare tokens engines emit for non-finite floats,
// longest first.
var nonFinite = []string{"-Infinity", "Infinity", "NaN"}

// quoteNonFinite quotes bare NaN and Infinity tokens outside string
// literals so the line becomes valid JSON.
func quoteNonFinite(line string) (string, bool) {
	var b strings.Builder
	changed, inString, escaped := false, false, false
	for i := 0; i < len(line); i++ {
		c := line[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		matched := false
		for _, tok := range nonFinite {
			if strings.HasPrefix(line[i:], tok) {
				b.WriteString(`"` + tok + `"`)
				i += len(tok) - 1
				changed, matched = true, true
				break
			}
		}
		if !matched {
			b.WriteByte(c)
		}
	}
	return b.String(), changed
}

func decodeFrame(line string) (Message, error) {
	var m Message
	err := json.Unmarshal([]byte(line), &m)
	if err != nil {
		quoted, changed := quoteNonFinite(line)
		if !changed {
			return Message{}, err
		}
		m = Message{}
		if json.Unmarshal([]byte(quoted), &m) != nil {
			return Message{}, err
		}
	}
	if m.Type == "" {
		return Message{}, fmt.Errorf("frame has no type")
	}
	return m, nil
}

// Value returns the step value at handle, or false when the handle is
// unresolved or beyond the reported values.
func (m Message) Value(handle int) (float64, bool) {
	if handle < 0 || handle >= len(m.Values) {
		return 0, false
	}
	return m.Values[handle], true
}

// maxFrameBytes bounds a single protocol line.
const maxFrameBytes = 1 << 20

// Conn frames messages over a reader/writer pair. It is not safe for
// concurrent use; each side drives its own Conn from one goroutine.
type Conn struct {
	scanner *bufio.Scanner
	enc     *json.Encoder
}

// NewConn returns a Conn reading frames from r and writing frames to w.
func NewConn(r io.Reader, w io.Writer) *Conn {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxFrameBytes)
	return &Conn{scanner: sc, enc: json.NewEncoder(w)}
}

// Receive reads the next frame. Blank lines are skipped. It returns io.EOF
// when the peer closed the stream between frames, and a *FrameError for a
// line that is not a valid message; the stream stays usable after one.
func (c *Conn) Receive() (Message, error) {
	for c.scanner.Scan() {
		line := strings.TrimSpace(c.scanner.Text())
		if line == "" {
			continue
		}
		m, err := decodeFrame(line)
		if err != nil {
			return Message{}, &FrameError{Type: sniffType(line), Line: truncate(line, 80), Err: err}
		}
		return m, nil
	}
	if err := c.scanner.Err(); err != nil {
		return Message{}, fmt.Errorf("reading engine frame: %w", err)
	}
	return Message{}, io.EOF
}

// Send writes m as a single line.
func (c *Conn) Send(m Message) error {
	if err := c.enc.Encode(m); err != nil {
		return fmt.Errorf("writing %s frame: %w", m.Type, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
