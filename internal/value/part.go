package value

// PartKind tags the variant of a complete message Part.
type PartKind int

const (
	PartKindText PartKind = iota
	PartKindThinking
	PartKindValue
	PartKindFunction
	PartKindImageURL
	PartKindImageData
	PartKindAudioURL
	PartKindAudioData
)

func (k PartKind) String() string {
	switch k {
	case PartKindText:
		return "text"
	case PartKindThinking:
		return "thinking"
	case PartKindValue:
		return "value"
	case PartKindFunction:
		return "function"
	case PartKindImageURL:
		return "image_url"
	case PartKindImageData:
		return "image_data"
	case PartKindAudioURL:
		return "audio_url"
	case PartKindAudioData:
		return "audio_data"
	default:
		return "unknown"
	}
}

// Part is one complete, finished piece of message content. Only the fields
// relevant to Kind are meaningful; it is a tagged union in struct form to
// match the rest of this package's Value type.
type Part struct {
	kind PartKind

	text string // Text, Thinking

	value Value // Value

	functionID   string // Function
	functionName string
	functionArgs Value

	url       string // ImageURL, AudioURL
	mediaType string // ImageData, AudioData
	data      string // base64 payload for ImageData, AudioData
}

func NewTextPart(text string) Part { return Part{kind: PartKindText, text: text} }

func NewThinkingPart(text string) Part { return Part{kind: PartKindThinking, text: text} }

func NewValuePart(v Value) Part { return Part{kind: PartKindValue, value: v} }

// NewFunctionPart builds a resolved function call part. id may be empty when
// the backend does not assign call ids.
func NewFunctionPart(id, name string, args Value) Part {
	return Part{kind: PartKindFunction, functionID: id, functionName: name, functionArgs: args}
}

func NewImageURLPart(url string) Part { return Part{kind: PartKindImageURL, url: url} }

func NewImageDataPart(mediaType, base64Data string) Part {
	return Part{kind: PartKindImageData, mediaType: mediaType, data: base64Data}
}

func NewAudioURLPart(url string) Part { return Part{kind: PartKindAudioURL, url: url} }

func NewAudioDataPart(mediaType, base64Data string) Part {
	return Part{kind: PartKindAudioData, mediaType: mediaType, data: base64Data}
}

func (p Part) Kind() PartKind { return p.kind }

// Text returns the text payload for Text/Thinking parts.
func (p Part) Text() (string, bool) {
	if p.kind != PartKindText && p.kind != PartKindThinking {
		return "", false
	}
	return p.text, true
}

func (p Part) Value() (Value, bool) {
	if p.kind != PartKindValue {
		return Value{}, false
	}
	return p.value, true
}

// Function returns the id (possibly empty), name, and arguments of a
// Function part.
func (p Part) Function() (id, name string, args Value, ok bool) {
	if p.kind != PartKindFunction {
		return "", "", Value{}, false
	}
	return p.functionID, p.functionName, p.functionArgs, true
}

func (p Part) ImageURL() (string, bool) {
	if p.kind != PartKindImageURL {
		return "", false
	}
	return p.url, true
}

func (p Part) ImageData() (mediaType, base64Data string, ok bool) {
	if p.kind != PartKindImageData {
		return "", "", false
	}
	return p.mediaType, p.data, true
}

func (p Part) AudioURL() (string, bool) {
	if p.kind != PartKindAudioURL {
		return "", false
	}
	return p.url, true
}

func (p Part) AudioData() (mediaType, base64Data string, ok bool) {
	if p.kind != PartKindAudioData {
		return "", "", false
	}
	return p.mediaType, p.data, true
}

// MarshalJSON renders the part using a HuggingFace/OpenAI-style
// {"type": "...", ...} shape.
func (p Part) MarshalJSON() ([]byte, error) {
	m := NewMap()
	switch p.kind {
	case PartKindText:
		m.Set("type", String("text"))
		m.Set("text", String(p.text))
	case PartKindThinking:
		m.Set("type", String("thinking"))
		m.Set("text", String(p.text))
	case PartKindValue:
		m.Set("type", String("value"))
		m.Set("value", p.value)
	case PartKindFunction:
		m.Set("type", String("function"))
		if p.functionID != "" {
			m.Set("id", String(p.functionID))
		}
		m.Set("name", String(p.functionName))
		m.Set("arguments", p.functionArgs)
	case PartKindImageURL:
		m.Set("type", String("image_url"))
		m.Set("url", String(p.url))
	case PartKindImageData:
		m.Set("type", String("image_data"))
		m.Set("media_type", String(p.mediaType))
		m.Set("data", String(p.data))
	case PartKindAudioURL:
		m.Set("type", String("audio_url"))
		m.Set("url", String(p.url))
	case PartKindAudioData:
		m.Set("type", String("audio_data"))
		m.Set("media_type", String(p.mediaType))
		m.Set("data", String(p.data))
	}
	return FromMap(m).MarshalJSON()
}
