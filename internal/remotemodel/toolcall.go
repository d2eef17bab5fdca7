package remotemodel

import (
	"encoding/json"

	"github.com/ailoy-go/ailoy/internal/value"
)

// toolCallBuilder wraps a dialect's raw argument-JSON fragments (all these
// dialects stream only the arguments object, never the name, alongside it)
// into the {"name":...,"arguments":...} envelope value.PartDelta.Finish
// expects from a FunctionVerbatim slot. At most one call is open at a
// time, the single open tool-call-slot constraint shared with local
// decode.
type toolCallBuilder struct {
	open bool
}

// openCall starts a new verbatim slot for a tool call whose id and name are
// already known, returning the PartDelta that opens it.
func (b *toolCallBuilder) openCall(id, name string) value.PartDelta {
	b.open = true
	quoted, _ := json.Marshal(name)
	return value.NewFunctionVerbatimDelta(id, `{"name":`+string(quoted)+`,"arguments":`)
}

// appendArgs continues the currently open slot with a raw arguments-JSON
// fragment.
func (b *toolCallBuilder) appendArgs(fragment string) value.PartDelta {
	return value.NewFunctionVerbatimDelta("", fragment)
}

// closeCall finalizes the open slot's JSON envelope.
func (b *toolCallBuilder) closeCall() value.PartDelta {
	b.open = false
	return value.NewFunctionVerbatimDelta("", "}")
}
