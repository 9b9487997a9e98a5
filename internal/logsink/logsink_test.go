package logsink

import "testing"

func TestLevelString(t *testing.T) {
	cases := []struct {
		l    Level
		want string
	}{
		{Emerg, "emerg"},
		{Debug, "debug"},
		{Warning, "warning"},
		{Level(99), "unknown"},
	}
	for _, c := range cases {
		if got := c.l.String(); got != c.want {
			t.Errorf("Level(%d).String() = %q, want %q", c.l, got, c.want)
		}
	}
}

func TestFatalInvokesHook(t *testing.T) {
	var called string
	s := New(Debug, func(msg string) { called = msg })
	s.Fatal("boom %d", 42)
	if called != "boom 42" {
		t.Fatalf("fatal hook got %q", called)
	}
}

func TestLogDropsBelowMinLevel(t *testing.T) {
	// This test only verifies no panic occurs when filtering; pterm's
	// output goes to stderr and isn't captured here.
	s := New(Warning, nil)
	s.Log(Debug, "should be dropped")
	s.Log(Err, "should be printed")
}
