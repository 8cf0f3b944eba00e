package parser

import (
	"context"

	edcerr "github.com/standardbeagle/edcore/internal/errors"
)

// captureRecord is one flat CaptureBegin/End pair produced during
// execution, before it is folded into a tree by nesting (spec §4.2
// "Captures"). Records nest in stack order because CaptureBegin/End
// always pairs with the Call/Return of a rule invocation, which is
// itself well-nested.
type captureRecord struct {
	tag   string
	attrs *CaptureAttrs
	start int
	end   int
	open  bool
}

type backtrackFrame struct {
	pc         int // resume address on failure
	subjectPos int
	capTop     int
	callDepth  int
}

// machine is one run of the bytecode interpreter over a single subject
// slice. It is not reused across runs — a fresh machine is built per Run
// call, matching the stack-machine-with-three-registers description in
// spec §4.2 (pc, subject pointer, capture pointer map to pc/pos/captures
// here; the explicit backtrack stack is backtrackFrame).
type machine struct {
	prog     *Program
	subject  []byte
	pos      int
	pc       int
	captures []captureRecord
	backtr   []backtrackFrame
	calls    []int
	longest  int
	steps    int
}

// maxSteps bounds a single Run call's instruction count as a last-resort
// guard: checkNoEmptyLoops rules out the classic non-terminating shape at
// compile time, but this remains cheap insurance for any other construct
// this compiler doesn't yet recognize.
const maxSteps = 50_000_000

// Run executes prog against subject starting at byte offset `from`,
// returning the folded capture tree on success. ctx is polled before
// every instruction, so a background parse task can be cancelled
// cooperatively.
func Run(ctx context.Context, prog *Program, subject []byte, from int) (*CaptureNode, error) {
	m := &machine{prog: prog, subject: subject, pos: from, pc: prog.Entry, longest: from}
	for {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return nil, &edcerr.CancelledError{Op: "parse"}
			default:
			}
		}
		m.steps++
		if m.steps > maxSteps {
			return nil, &edcerr.ParseIncompleteError{Longest: m.longest}
		}
		instr := m.prog.Code[m.pc]
		switch instr.Op {
		case OpChar:
			if m.pos < len(m.subject) && m.subject[m.pos] == instr.Byte {
				m.pos++
				if m.pos > m.longest {
					m.longest = m.pos
				}
				m.pc++
			} else if !m.fail() {
				return nil, &edcerr.ParseIncompleteError{Longest: m.longest}
			}
		case OpSet:
			if m.pos < len(m.subject) && instr.Class.Has(m.subject[m.pos]) {
				m.pos++
				if m.pos > m.longest {
					m.longest = m.pos
				}
				m.pc++
			} else if !m.fail() {
				return nil, &edcerr.ParseIncompleteError{Longest: m.longest}
			}
		case OpRange:
			if m.pos < len(m.subject) && m.subject[m.pos] >= instr.Lo && m.subject[m.pos] <= instr.Hi {
				m.pos++
				if m.pos > m.longest {
					m.longest = m.pos
				}
				m.pc++
			} else if !m.fail() {
				return nil, &edcerr.ParseIncompleteError{Longest: m.longest}
			}
		case OpAny:
			if m.pos < len(m.subject) {
				m.pos++
				if m.pos > m.longest {
					m.longest = m.pos
				}
				m.pc++
			} else if !m.fail() {
				return nil, &edcerr.ParseIncompleteError{Longest: m.longest}
			}
		case OpSpan:
			for m.pos < len(m.subject) && instr.Class.Has(m.subject[m.pos]) {
				m.pos++
			}
			if m.pos > m.longest {
				m.longest = m.pos
			}
			m.pc++
		case OpChoice:
			m.backtr = append(m.backtr, backtrackFrame{pc: instr.Arg, subjectPos: m.pos, capTop: len(m.captures), callDepth: len(m.calls)})
			m.pc++
		case OpJump:
			m.pc = instr.Arg
		case OpCall:
			m.calls = append(m.calls, m.pc+1)
			m.pc = instr.Arg
		case OpReturn:
			if len(m.calls) == 0 {
				m.pc = len(m.prog.Code) - 1 // OpEnd, appended by Compile
				continue
			}
			m.pc = m.calls[len(m.calls)-1]
			m.calls = m.calls[:len(m.calls)-1]
		case OpCommit:
			m.backtr = m.backtr[:len(m.backtr)-1]
			m.pc = instr.Arg
		case OpPartialCommit:
			top := &m.backtr[len(m.backtr)-1]
			top.subjectPos = m.pos
			top.capTop = len(m.captures)
			m.pc = instr.Arg
		case OpBackCommit:
			top := m.backtr[len(m.backtr)-1]
			m.backtr = m.backtr[:len(m.backtr)-1]
			m.pos = top.subjectPos
			m.pc = instr.Arg
		case OpFail:
			if !m.fail() {
				return nil, &edcerr.ParseIncompleteError{Longest: m.longest}
			}
		case OpFailTwice:
			if len(m.backtr) > 0 {
				m.backtr = m.backtr[:len(m.backtr)-1]
			}
			if !m.fail() {
				return nil, &edcerr.ParseIncompleteError{Longest: m.longest}
			}
		case OpCaptureBegin:
			m.captures = append(m.captures, captureRecord{tag: instr.Name, attrs: instr.Attrs, start: m.pos, open: true})
			m.pc++
		case OpCaptureEnd:
			last := -1
			for i := len(m.captures) - 1; i >= 0; i-- {
				if m.captures[i].open {
					last = i
					break
				}
			}
			m.captures[last].end = m.pos
			m.captures[last].open = false
			m.pc++
		case OpBackref:
			length, ok := m.lastClosedLength(instr.Name)
			if !ok {
				if !m.fail() {
					return nil, &edcerr.ParseIncompleteError{Longest: m.longest}
				}
				continue
			}
			start, _ := m.lastClosedRange(instr.Name)
			if m.pos+length > len(m.subject) || !bytesEqual(m.subject[start:start+length], m.subject[m.pos:m.pos+length]) {
				if !m.fail() {
					return nil, &edcerr.ParseIncompleteError{Longest: m.longest}
				}
				continue
			}
			m.pos += length
			if m.pos > m.longest {
				m.longest = m.pos
			}
			m.pc++
		case OpEnd:
			return foldCaptures(m.captures), nil
		default:
			return nil, &edcerr.GrammarError{Kind: edcerr.GrammarBadClass}
		}
	}
}

// fail pops the nearest backtrack frame and resumes there, discarding any
// captures and calls made since it was pushed. It returns false if no
// frame remains — the whole match has failed from its start position.
func (m *machine) fail() bool {
	if len(m.backtr) == 0 {
		return false
	}
	top := m.backtr[len(m.backtr)-1]
	m.backtr = m.backtr[:len(m.backtr)-1]
	m.pos = top.subjectPos
	m.captures = m.captures[:top.capTop]
	m.calls = m.calls[:top.callDepth]
	m.pc = top.pc
	return true
}

// lastClosedRange finds the most recent closed capture tagged name.
func (m *machine) lastClosedRange(name string) (start int, ok bool) {
	for i := len(m.captures) - 1; i >= 0; i-- {
		if m.captures[i].tag == name && !m.captures[i].open {
			return m.captures[i].start, true
		}
	}
	return 0, false
}

func (m *machine) lastClosedLength(name string) (int, bool) {
	for i := len(m.captures) - 1; i >= 0; i-- {
		if m.captures[i].tag == name && !m.captures[i].open {
			return m.captures[i].end - m.captures[i].start, true
		}
	}
	return 0, false
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
