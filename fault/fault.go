// Package fault drives deterministic fault injection for the Go-Back-N sender.
//
// A Script lists one Code per transmission attempt. The Injector walks the script
// with a cursor; once the script is exhausted every further attempt is None.
// The injector only decides; the sender performs the effects (suppressing the
// send, corrupting the payload, writing the corrupted-packet Log).
package fault

import "fmt"

// Code is the simulated fault applied to one transmission attempt.
type Code int

const (
	// None sends the packet normally.
	None Code = 0
	// Timeout suppresses the send and counts it as a retry.
	Timeout Code = 1
	// Corrupt mutates the payload, logs the original and sends anyway.
	Corrupt Code = 2
)

// IsValid reports whether c is a defined fault code.
func (c Code) IsValid() bool {
	return c >= None && c <= Corrupt
}

func (c Code) String() string {
	switch c {
	case None:
		return "none"
	case Timeout:
		return "timeout"
	case Corrupt:
		return "corrupt"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// Script is an ordered list of fault codes, one per transmission attempt.
type Script []Code

// Len returns the number of scripted attempts.
func (s Script) Len() int { return len(s) }

// Count returns how many entries of the script equal c.
func (s Script) Count(c Code) int {
	n := 0
	for _, v := range s {
		if v == c {
			n++
		}
	}

	return n
}

// Next returns the code at cursor and the advanced cursor.
// Past the end of the script it returns None.
func (s Script) Next(cursor int) (Code, int) {
	if cursor < 0 || cursor >= len(s) {
		return None, cursor + 1
	}

	return s[cursor], cursor + 1
}

// Injector consumes a Script one attempt at a time.
//
// Injector is NOT goroutine-safe; it is owned by the single sender loop.
type Injector struct {
	script Script
	cursor int
}

// NewInjector creates an Injector over a private copy of script.
func NewInjector(script Script) *Injector {
	owned := make(Script, len(script))
	copy(owned, script)

	return &Injector{script: owned}
}

// Next consumes and returns the code for the next transmission attempt.
func (inj *Injector) Next() Code {
	var code Code
	code, inj.cursor = inj.script.Next(inj.cursor)

	return code
}

// Cursor returns the number of attempts consumed so far.
func (inj *Injector) Cursor() int { return inj.cursor }

// Remaining returns the number of scripted entries not yet consumed.
func (inj *Injector) Remaining() int {
	if inj.cursor >= len(inj.script) {
		return 0
	}

	return len(inj.script) - inj.cursor
}

// Script returns a copy of the underlying script.
func (inj *Injector) Script() Script {
	out := make(Script, len(inj.script))
	copy(out, inj.script)

	return out
}
