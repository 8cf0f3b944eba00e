package parser

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

// ExportedInstr is the JSON-friendly rendering of one Instr: opcodes are
// named rather than numeric, and ByteClass/*CaptureAttrs are inlined.
type ExportedInstr struct {
	Op    string        `json:"op"`
	Byte  *byte         `json:"byte,omitempty"`
	Lo    *byte         `json:"lo,omitempty"`
	Hi    *byte         `json:"hi,omitempty"`
	Class []byte        `json:"class,omitempty"` // 256-bit membership, one byte per 8-value octant flattened LSB-first
	Arg   int           `json:"arg,omitempty"`
	Attrs *CaptureAttrs `json:"attrs,omitempty"`
	Name  string        `json:"name,omitempty"`
}

// ExportedProgram is the JSON form of a compiled Program, printed by the
// `edfmt dump-bytecode` command, which with --validate checks it against
// programSchema before writing it out, so a malformed exporter change fails
// loudly instead of shipping bytecode a host can't parse back.
type ExportedProgram struct {
	Entry int                `json:"entry"`
	Rules []RuleEntry        `json:"rules"`
	Code  []ExportedInstr    `json:"code"`
}

var opNames = map[Op]string{
	OpChar: "char", OpSet: "set", OpRange: "range", OpAny: "any",
	OpChoice: "choice", OpJump: "jump", OpCall: "call", OpReturn: "return",
	OpCommit: "commit", OpPartialCommit: "partial_commit", OpBackCommit: "back_commit",
	OpFail: "fail", OpFailTwice: "fail_twice", OpCaptureBegin: "capture_begin",
	OpCaptureEnd: "capture_end", OpTestChar: "test_char", OpTestSet: "test_set",
	OpSpan: "span", OpBackref: "backref", OpEnd: "end",
}

// ExportProgram converts prog into its JSON-serializable form.
func ExportProgram(prog *Program) *ExportedProgram {
	out := &ExportedProgram{Entry: prog.Entry, Rules: append([]RuleEntry(nil), prog.Rules...)}
	for _, in := range prog.Code {
		ei := ExportedInstr{Op: opNames[in.Op], Arg: in.Arg, Attrs: in.Attrs, Name: in.Name}
		switch in.Op {
		case OpChar, OpTestChar:
			b := in.Byte
			ei.Byte = &b
		case OpRange:
			lo, hi := in.Lo, in.Hi
			ei.Lo, ei.Hi = &lo, &hi
		}
		if in.Class != nil {
			ei.Class = classToBytes(*in.Class)
		}
		out.Code = append(out.Code, ei)
	}
	return out
}

func classToBytes(c ByteClass) []byte {
	b := make([]byte, 32)
	for word := 0; word < 4; word++ {
		for i := 0; i < 8; i++ {
			b[word*8+i] = byte(c[word] >> (i * 8))
		}
	}
	return b
}

// programSchema is built lazily from ExportedProgram's shape via
// reflection (jsonschema.For), the same schema-from-Go-type approach the
// teacher's MCP tool registrations use — rehomed here to validate the
// core's own bytecode export instead of a tool's input. Capture-tree output
// has no schema here.
var programSchema *jsonschema.Resolved

func resolvedProgramSchema() (*jsonschema.Resolved, error) {
	if programSchema != nil {
		return programSchema, nil
	}
	schema, err := jsonschema.For[ExportedProgram](nil)
	if err != nil {
		return nil, err
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, err
	}
	programSchema = resolved
	return resolved, nil
}

// ValidateExportedProgram marshals exported to JSON and checks it against
// programSchema, catching an exporter/schema drift before it reaches a
// consumer (spec §6 "Capture output" / §3 "Program" are both depended on
// by external collaborators, so a shape mismatch here is a real bug).
func ValidateExportedProgram(exported *ExportedProgram) error {
	resolved, err := resolvedProgramSchema()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(exported)
	if err != nil {
		return err
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return err
	}
	return resolved.Validate(instance)
}
