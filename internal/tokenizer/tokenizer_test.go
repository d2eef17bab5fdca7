package tokenizer

import "testing"

type fakeDecoder struct {
	responses map[int]string
}

func (f fakeDecoder) Decode(tokens []uint32, skipSpecialTokens bool) (string, error) {
	return f.responses[len(tokens)], nil
}

func TestIncrementalBufferWaitsOutReplacementChar(t *testing.T) {
	d := fakeDecoder{responses: map[int]string{
		1: "hel" + replacementChar,
		2: "hello",
	}}
	buf := &IncrementalBuffer{tok: d}

	text, ok, err := buf.Push(1)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("expected buffering on trailing replacement char, got ok with %q", text)
	}

	text, ok, err = buf.Push(2)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || text != "hello" {
		t.Fatalf("text = %q, ok = %v, want \"hello\", true", text, ok)
	}
	if len(buf.tokens) != 0 {
		t.Fatalf("buffer not cleared after successful decode")
	}
}

func TestEndsInReplacementChar(t *testing.T) {
	cases := map[string]bool{
		"":           false,
		"hello":      false,
		"hel" + replacementChar: true,
	}
	for s, want := range cases {
		if got := endsInReplacementChar(s); got != want {
			t.Errorf("endsInReplacementChar(%q) = %v, want %v", s, got, want)
		}
	}
}
