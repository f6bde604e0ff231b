package logger

import "testing"

func TestScrubRedactsSensitiveKeys(t *testing.T) {
	out := scrub([]interface{}{
		"user_id", "u1",
		"password", "hunter2",
		"id_token", "abc",
		"Email", "a@b.c",
		"header", "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJ1MSJ9.sig",
		"dangling",
	})
	want := []interface{}{
		"user_id", "u1",
		"password", redacted,
		"id_token", redacted,
		"Email", redacted,
		"header", redacted,
		"dangling",
	}
	if len(out) != len(want) {
		t.Fatalf("len = %d, want %d", len(out), len(want))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"development", "production", ""} {
		l, err := New(mode)
		if err != nil {
			t.Fatalf("New(%q): %v", mode, err)
		}
		l.With("component", "test").Debug("hello", "k", "v")
	}
}
