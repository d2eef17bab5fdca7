package value

// MessageDelta is the accumulative, streaming counterpart to Message.
// Every field is optional; Accumulate folds one delta into another and
// Finish converts a fully-accumulated delta into a Message.
type MessageDelta struct {
	Role      *Role
	ID        *string
	Contents  []PartDelta
	Thinking  *string
	ToolCalls []PartDelta
}

// Accumulate folds b onto a and returns the result. a and b are not
// mutated; the caller is expected to thread the return value forward
// (`acc = Accumulate(acc, next)`).
func Accumulate(a, b MessageDelta) (MessageDelta, error) {
	out := MessageDelta{
		Role:     a.Role,
		ID:       a.ID,
		Thinking: a.Thinking,
	}
	out.Contents = append([]PartDelta(nil), a.Contents...)
	out.ToolCalls = append([]PartDelta(nil), a.ToolCalls...)

	if b.Role != nil {
		if out.Role != nil && *out.Role != *b.Role {
			return MessageDelta{}, &RoleConflictError{A: *out.Role, B: *b.Role}
		}
		out.Role = b.Role
	}
	if b.ID != nil {
		if out.ID != nil && *out.ID != *b.ID {
			return MessageDelta{}, &IDConflictError{A: *out.ID, B: *b.ID}
		}
		out.ID = b.ID
	}
	if b.Thinking != nil {
		merged := ""
		if out.Thinking != nil {
			merged = *out.Thinking
		}
		merged += *b.Thinking
		out.Thinking = &merged
	}

	for _, d := range b.Contents {
		out.Contents = mergeContentDelta(out.Contents, d)
	}
	for _, d := range b.ToolCalls {
		out.ToolCalls = mergeToolCallDelta(out.ToolCalls, d)
	}
	return out, nil
}

// mergeContentDelta implements the content merge policy: adjacent
// text/thinking deltas of the same kind string-append; a Value delta
// replaces (rather than appends to) a trailing Value delta; everything
// else pushes a new element.
func mergeContentDelta(dst []PartDelta, next PartDelta) []PartDelta {
	if len(dst) == 0 {
		return append(dst, next)
	}
	last := dst[len(dst)-1]
	switch {
	case last.kind == PartDeltaKindText && next.kind == PartDeltaKindText:
		dst[len(dst)-1] = PartDelta{kind: PartDeltaKindText, text: last.text + next.text}
		return dst
	case last.kind == PartDeltaKindThinking && next.kind == PartDeltaKindThinking:
		dst[len(dst)-1] = PartDelta{kind: PartDeltaKindThinking, text: last.text + next.text}
		return dst
	case last.kind == PartDeltaKindValue && next.kind == PartDeltaKindValue:
		dst[len(dst)-1] = next
		return dst
	default:
		return append(dst, next)
	}
}

// mergeToolCallDelta implements the tool_calls merge policy: a
// FunctionVerbatim/FunctionParsed delta carrying a non-empty id opens a new
// slot (pushed); a FunctionVerbatim delta with an empty id appends its text
// to the currently open slot.
func mergeToolCallDelta(dst []PartDelta, next PartDelta) []PartDelta {
	if next.kind == PartDeltaKindFunctionVerbatim && next.functionID == "" && len(dst) > 0 {
		last := dst[len(dst)-1]
		if last.kind == PartDeltaKindFunctionVerbatim {
			dst[len(dst)-1] = PartDelta{kind: PartDeltaKindFunctionVerbatim, functionID: last.functionID, text: last.text + next.text}
			return dst
		}
	}
	return append(dst, next)
}

// Finish converts an accumulated MessageDelta into a Message. A delta
// finishes iff Role is set and every FunctionVerbatim slot holds balanced,
// parseable JSON.
func (d MessageDelta) Finish() (Message, error) {
	if d.Role == nil {
		return Message{}, errMissingRole
	}
	msg := Message{Role: *d.Role}
	if d.ID != nil {
		msg.ID = *d.ID
	}
	if d.Thinking != nil {
		msg.Thinking = *d.Thinking
	}
	for _, pd := range d.Contents {
		p, err := pd.finish()
		if err != nil {
			return Message{}, err
		}
		msg.Contents = append(msg.Contents, p)
	}
	for _, pd := range d.ToolCalls {
		p, err := pd.finish()
		if err != nil {
			return Message{}, err
		}
		msg.ToolCalls = append(msg.ToolCalls, p)
	}
	return msg, nil
}

var errMissingRole = &missingRoleError{}

type missingRoleError struct{}

func (e *missingRoleError) Error() string {
	return "value: cannot finish MessageDelta without a role"
}

// MessageDeltaOutput pairs a delta with an optional terminal finish reason.
// FinishReason is non-nil iff this is the terminal segment of the stream
// for the message being accumulated.
type MessageDeltaOutput struct {
	Delta        MessageDelta
	FinishReason *FinishReason
}
