package mmc

import "testing"

func TestDebugEnabledHonorsMask(t *testing.T) {
	SetDebug(DebugMove | DebugAccum)
	defer SetDebug(0)
	if !debugEnabled(DebugMove) {
		t.Fatalf("DebugMove should be enabled")
	}
	if debugEnabled(DebugReflect) {
		t.Fatalf("DebugReflect should not be enabled")
	}
}

func TestDebugLogOnceFiresOnlyOnce(t *testing.T) {
	SetDebug(DebugProgress)
	defer SetDebug(0)
	key := "test-key-unique-12345"
	logOnce.Delete(key)
	defer logOnce.Delete(key)

	debugLogOnce(DebugProgress, key, "first call prints")
	if _, loaded := logOnce.LoadOrStore(key, struct{}{}); !loaded {
		t.Fatalf("debugLogOnce should record its key so later calls with the same key stay silent")
	}
	debugLogOnce(DebugProgress, key, "second call is suppressed")
}
