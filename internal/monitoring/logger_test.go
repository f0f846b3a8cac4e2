package monitoring

import "testing"

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = format
	})
	Logf("capture session %s started", "abc")
	if got != "capture session %s started" {
		t.Errorf("custom logger not invoked, got %q", got)
	}

	// nil installs a no-op that must not panic and must not reach the
	// previous logger.
	got = ""
	SetLogger(nil)
	Logf("dropped")
	if got != "" {
		t.Errorf("no-op logger still forwarded: %q", got)
	}
}

func TestLogfDefaultNotNil(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should not be nil by default")
	}
}
