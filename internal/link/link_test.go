package link

import "testing"

func TestBuildParseRoundTrip(t *testing.T) {
	s := Build("aaaaaaaaaaaaaaaa.onion", 5000, "alice")
	onion, port, nick, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if onion != "aaaaaaaaaaaaaaaa.onion" || port != 5000 || nick != "alice" {
		t.Fatalf("got (%q, %d, %q)", onion, port, nick)
	}
}

func TestBuildWithoutNick(t *testing.T) {
	s := Build("bbbbbbbbbbbbbbbb.onion", 6000, "")
	_, _, nick, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if nick != "" {
		t.Fatalf("nick = %q, want empty", nick)
	}
}

func TestParseRejectsWrongScheme(t *testing.T) {
	if _, _, _, err := Parse("http://example.com"); err != ErrNotALink {
		t.Fatalf("err = %v, want ErrNotALink", err)
	}
}

func TestParseRejectsInvalidOnion(t *testing.T) {
	if _, _, _, err := Parse("dchat://not-an-onion:5000"); err == nil {
		t.Fatal("expected invalid onion to fail")
	}
}

func TestParseRejectsInvalidPort(t *testing.T) {
	if _, _, _, err := Parse("dchat://aaaaaaaaaaaaaaaa.onion:0"); err == nil {
		t.Fatal("expected invalid port to fail")
	}
}
