package value

// PartDeltaKind tags the variant of an incremental Part update.
type PartDeltaKind int

const (
	PartDeltaKindText PartDeltaKind = iota
	PartDeltaKindThinking
	PartDeltaKindValue
	PartDeltaKindFunctionVerbatim
	PartDeltaKindFunctionParsed
)

// PartDelta is an incremental update to a Part. Function arguments stream
// as raw verbatim JSON text (PartDeltaKindFunctionVerbatim) and are parsed
// once at Finish; a backend that already hands back parsed arguments in one
// shot uses PartDeltaKindFunctionParsed directly.
type PartDelta struct {
	kind PartDeltaKind

	text string // Text, Thinking, FunctionVerbatim

	value Value // Value

	functionID   string // FunctionVerbatim, FunctionParsed
	functionName string // FunctionParsed
	functionArgs Value  // FunctionParsed
}

func NewTextDelta(text string) PartDelta { return PartDelta{kind: PartDeltaKindText, text: text} }

func NewThinkingDelta(text string) PartDelta {
	return PartDelta{kind: PartDeltaKindThinking, text: text}
}

func NewValueDelta(v Value) PartDelta { return PartDelta{kind: PartDeltaKindValue, value: v} }

// NewFunctionVerbatimDelta opens or continues a function-call slot. id is
// non-empty only on the delta that opens the slot; subsequent chunks for
// the same call pass an empty id and accumulate into the open slot's
// verbatim text.
func NewFunctionVerbatimDelta(id, text string) PartDelta {
	return PartDelta{kind: PartDeltaKindFunctionVerbatim, functionID: id, text: text}
}

func NewFunctionParsedDelta(id, name string, args Value) PartDelta {
	return PartDelta{kind: PartDeltaKindFunctionParsed, functionID: id, functionName: name, functionArgs: args}
}

func (d PartDelta) Kind() PartDeltaKind { return d.kind }

func (d PartDelta) Text() (string, bool) {
	if d.kind != PartDeltaKindText && d.kind != PartDeltaKindThinking {
		return "", false
	}
	return d.text, true
}

func (d PartDelta) Value() (Value, bool) {
	if d.kind != PartDeltaKindValue {
		return Value{}, false
	}
	return d.value, true
}

func (d PartDelta) FunctionVerbatim() (id, text string, ok bool) {
	if d.kind != PartDeltaKindFunctionVerbatim {
		return "", "", false
	}
	return d.functionID, d.text, true
}

func (d PartDelta) FunctionParsed() (id, name string, args Value, ok bool) {
	if d.kind != PartDeltaKindFunctionParsed {
		return "", "", Value{}, false
	}
	return d.functionID, d.functionName, d.functionArgs, true
}

// finish converts a single accumulated PartDelta slot into a finished Part.
// A FunctionVerbatim slot must hold balanced JSON; failure is a fatal
// aggregation error per spec ("finish" parses the JSON once complete).
func (d PartDelta) finish() (Part, error) {
	switch d.kind {
	case PartDeltaKindText:
		return NewTextPart(d.text), nil
	case PartDeltaKindThinking:
		return NewThinkingPart(d.text), nil
	case PartDeltaKindValue:
		return NewValuePart(d.value), nil
	case PartDeltaKindFunctionParsed:
		return NewFunctionPart(d.functionID, d.functionName, d.functionArgs), nil
	case PartDeltaKindFunctionVerbatim:
		name, args, err := parseFunctionVerbatim(d.text)
		if err != nil {
			return Part{}, &ToolCallParseError{Raw: d.text, Cause: err}
		}
		return NewFunctionPart(d.functionID, name, args), nil
	default:
		return Part{}, nil
	}
}

// parseFunctionVerbatim accepts either a bare JSON arguments object
// (`{"location":"Dubai"}`) or a full `{"name":...,"arguments":...}` object,
// matching the two shapes real backends stream under this slot.
func parseFunctionVerbatim(raw string) (name string, args Value, err error) {
	v, err := FromJSON([]byte(raw))
	if err != nil {
		return "", Value{}, err
	}
	if m, ok := v.AsMap(); ok {
		if nameVal, ok := m.Get("name"); ok {
			if n, ok := nameVal.AsString(); ok {
				argVal, _ := m.Get("arguments")
				return n, argVal, nil
			}
		}
	}
	return "", v, nil
}

// ToolCallParseError is returned when verbatim tool-call argument text does
// not parse as valid JSON at Finish time.
type ToolCallParseError struct {
	Raw   string
	Cause error
}

func (e *ToolCallParseError) Error() string {
	return "value: malformed tool-call arguments JSON: " + e.Cause.Error()
}

func (e *ToolCallParseError) Unwrap() error { return e.Cause }
