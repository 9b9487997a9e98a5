package pdu

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestContactToStringRoundTrip(t *testing.T) {
	ref := ContactRef{OnionID: "aaaaaaaaaaaaaaaa.onion", Port: 6000}
	s, err := ContactToString(ref)
	if err != nil {
		t.Fatalf("ContactToString: %v", err)
	}
	if s != "aaaaaaaaaaaaaaaa.onion 6000\n" {
		t.Fatalf("unexpected rendering: %q", s)
	}
	got, err := StringToContact(s)
	if err != nil {
		t.Fatalf("StringToContact: %v", err)
	}
	if got != ref {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, ref)
	}
}

func TestContactToStringInvalid(t *testing.T) {
	if _, err := ContactToString(ContactRef{OnionID: "short.onion", Port: 6000}); !errors.Is(err, ErrInvalidContact) {
		t.Fatalf("expected ErrInvalidContact, got %v", err)
	}
	if _, err := ContactToString(ContactRef{OnionID: "aaaaaaaaaaaaaaaa.onion", Port: 0}); !errors.Is(err, ErrInvalidContact) {
		t.Fatalf("expected ErrInvalidContact for bad port, got %v", err)
	}
}

func TestStringToContactPortBoundary(t *testing.T) {
	// S6 from spec §8.
	cases := []struct {
		in      string
		wantOK  bool
		reason  Reason
	}{
		{"aaaaaaaaaaaaaaaa.onion 0", false, ReasonBadPort},
		{"aaaaaaaaaaaaaaaa.onion 65535", true, ReasonNone},
		{"aaaaaaaaaaaaaaaa.onion 65536", false, ReasonBadPort},
		{"aaaaaaaaaaaaaaaa.onion 80abc", false, ReasonBadPort},
		{"aaaaaaaaaaaaaaaa.onion", false, ReasonMissingPort},
		{" 6000", false, ReasonMissingOnion},
	}
	for _, c := range cases {
		_, err := StringToContact(c.in)
		if c.wantOK && err != nil {
			t.Errorf("StringToContact(%q): unexpected error %v", c.in, err)
			continue
		}
		if !c.wantOK {
			var cle *ContactLineError
			if !errors.As(err, &cle) {
				t.Errorf("StringToContact(%q): expected ContactLineError, got %v", c.in, err)
				continue
			}
			if cle.Reason != c.reason {
				t.Errorf("StringToContact(%q): reason = %v, want %v", c.in, cle.Reason, c.reason)
			}
		}
	}
}

func TestStringToContactDoesNotMutateInput(t *testing.T) {
	in := "aaaaaaaaaaaaaaaa.onion 6000\n"
	cp := in
	if _, err := StringToContact(in); err != nil {
		t.Fatalf("StringToContact: %v", err)
	}
	if in != cp {
		t.Fatalf("input string was mutated")
	}
}

func TestEncodeDecodeDiscover(t *testing.T) {
	sender := Sender{OnionID: "aaaaaaaaaaaaaaaa.onion", Port: 6000, Name: "alice"}
	lines := []string{"bbbbbbbbbbbbbbbb.onion 6001\n", "cccccccccccccccc.onion 6002\n"}
	frame := EncodeDiscover(sender, lines)

	got, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.ContentType != ContentType {
		t.Fatalf("content-type = %q", got.ContentType)
	}
	if got.Sender != sender {
		t.Fatalf("sender mismatch: got %+v want %+v", got.Sender, sender)
	}
	wantContent := lines[0] + lines[1]
	if !bytes.Equal(got.Content, []byte(wantContent)) {
		t.Fatalf("content mismatch: got %q want %q", got.Content, wantContent)
	}
}

func TestEncodeDiscoverEmptyPayload(t *testing.T) {
	sender := Sender{OnionID: "aaaaaaaaaaaaaaaa.onion", Port: 6000, Name: "alice"}
	frame := EncodeDiscover(sender, nil)
	got, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.ContentLength != 0 || len(got.Content) != 0 {
		t.Fatalf("expected empty content, got %q (len %d)", got.Content, got.ContentLength)
	}
}

func TestDecodeMalformedFrame(t *testing.T) {
	if _, err := Decode([]byte("not a frame")); !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
	// missing required header
	bad := "Version: 1.0\nContent-Type: control/discover\n\n"
	if _, err := Decode([]byte(bad)); !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame for missing headers, got %v", err)
	}
	// declared length exceeds actual payload
	bad2 := "Version: 1.0\nContent-Type: control/discover\nOnion-ID: a\nListen-Port: 1\nNickname: x\nContent-Length: 100\n\nshort"
	if _, err := Decode([]byte(bad2)); !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame for truncated payload, got %v", err)
	}
}

func TestGetContentPart(t *testing.T) {
	p := &PDU{ContentLength: 9, Content: []byte("ab cd\nef\n")}
	end, slice, err := GetContentPart(p, 0, '\n')
	if err != nil {
		t.Fatalf("GetContentPart: %v", err)
	}
	if end != 5 || string(slice) != "ab cd" {
		t.Fatalf("got end=%d slice=%q", end, slice)
	}
	end2, slice2, err := GetContentPart(p, end+1, '\n')
	if err != nil {
		t.Fatalf("GetContentPart second: %v", err)
	}
	if end2 != 8 || string(slice2) != "ef" {
		t.Fatalf("got end=%d slice=%q", end2, slice2)
	}
}

func TestReadFrameRoundTrip(t *testing.T) {
	sender := Sender{OnionID: "aaaaaaaaaaaaaaaa.onion", Port: 6000, Name: "alice"}
	frame := EncodeDiscover(sender, []string{"bbbbbbbbbbbbbbbb.onion 6001\n"})

	// Two frames back to back, to confirm ReadFrame stops exactly at
	// the content boundary and leaves the second frame untouched.
	r := bufio.NewReader(io.MultiReader(bytes.NewReader(frame), bytes.NewReader(frame)))

	first, err := ReadFrame(r)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	got, err := Decode(first)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Sender != sender {
		t.Fatalf("sender mismatch: %+v", got.Sender)
	}

	second, err := ReadFrame(r)
	if err != nil {
		t.Fatalf("ReadFrame (second): %v", err)
	}
	if !bytes.Equal(second, first) {
		t.Fatalf("second frame = %q, want identical to first", second)
	}
}

func TestReadFrameMissingContentLength(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("Version: 1.0\nContent-Type: control/discover\n\n"))
	if _, err := ReadFrame(r); !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
}

func TestGetContentPartNoDelimiter(t *testing.T) {
	p := &PDU{ContentLength: 5, Content: []byte("abcde")}
	if _, _, err := GetContentPart(p, 0, '\n'); !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
}
