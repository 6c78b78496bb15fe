package logx

import "testing"

func TestSetVerboseToggle(t *testing.T) {
	SetVerbose(false)
	if Verbose() {
		t.Fatal("expected Verbose() false after SetVerbose(false)")
	}
	SetVerbose(true)
	if !Verbose() {
		t.Fatal("expected Verbose() true after SetVerbose(true)")
	}
	SetVerbose(false)
}

func TestTracefNoopWhenNotVerbose(t *testing.T) {
	SetVerbose(false)
	// Must not panic; glog's underlying write path is not exercised
	// when verbose is off.
	Tracef("should not be emitted: %d", 1)
}

func TestAlwaysAndWarnDoNotPanic(t *testing.T) {
	Always("always line: %d", 1)
	Warn("t.HC", 3, "warn line: %s", "x")
	SessionEvent(7, "session line: %s", "y")
}
