package feed

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/glowlabs/hangar/internal/model"
)

func TestDecode(t *testing.T) {
	doc := []byte("B0892A3B1189B4E74BB54CCF8CAA36DB5E63A851 App-1.0.0-full.nupkg 84758737\n" +
		"5E63A851B0892A3B1189B4E74BB54CCF8CAA36DB App-1.0.0-delta.nupkg 1284394")

	entries, err := Decode(doc)
	if err != nil {
		t.Fatal(err)
	}

	want := []Entry{
		{SHA: "B0892A3B1189B4E74BB54CCF8CAA36DB5E63A851", Filename: "App-1.0.0-full.nupkg", Size: 84758737},
		{SHA: "5E63A851B0892A3B1189B4E74BB54CCF8CAA36DB", Filename: "App-1.0.0-delta.nupkg", Size: 1284394},
	}
	if !reflect.DeepEqual(entries, want) {
		t.Fatalf("got %+v, want %+v", entries, want)
	}
}

func TestDecodeIgnoresBlankLinesAndCRLF(t *testing.T) {
	doc := []byte("AAAA App.nupkg 10\r\n\r\nBBBB Delta.nupkg 20\r\n")
	entries, err := Decode(doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing field", "AAAA App.nupkg"},
		{"extra field", "AAAA App.nupkg 10 surplus"},
		{"bad size", "AAAA App.nupkg ten"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.doc)); !errors.Is(err, model.ErrMalformedFeed) {
				t.Fatalf("expected malformed feed error, got %v", err)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	entries := []Entry{
		{SHA: "AAAA", Filename: "App-full.nupkg", Size: 1},
		{SHA: "BBBB", Filename: "App-delta.nupkg", Size: 2},
	}
	decoded, err := Decode(Encode(entries))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(decoded, entries) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, entries)
	}
}

func TestEncodeExactBytes(t *testing.T) {
	got := Encode([]Entry{{SHA: "AAAA", Filename: "App.nupkg", Size: 42}})
	want := []byte("AAAA App.nupkg 42")
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRewrite(t *testing.T) {
	entries := []Entry{{SHA: "AAAA", Filename: "App-full.nupkg", Size: 42}}
	out := Rewrite(entries, "https://updates.example.com/", "1.2.0")

	if out[0].Filename != "https://updates.example.com/download/1.2.0/App-full.nupkg" {
		t.Fatalf("got %q", out[0].Filename)
	}
	if out[0].SHA != "AAAA" || out[0].Size != 42 {
		t.Fatal("hash and size must be preserved verbatim")
	}
	if entries[0].Filename != "App-full.nupkg" {
		t.Fatal("input slice must not be mutated")
	}
}
