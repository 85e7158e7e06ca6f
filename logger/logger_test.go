package logger

import "testing"

func TestNewLevels(t *testing.T) {
	for _, lvl := range []string{"", "debug", "INFO", "warn", "error"} {
		l, err := New(lvl)
		if err != nil {
			t.Fatalf("New(%q): %v", lvl, err)
		}
		_ = l.Sync()
	}
	if _, err := New("chatty"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNamedNilFallsBackToNop(t *testing.T) {
	if Named(nil, "x") == nil {
		t.Fatal("expected nop logger")
	}
}

func TestMustPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	_, err := New("chatty")
	Must(nil, err)
}
