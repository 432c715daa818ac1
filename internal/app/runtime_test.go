package app

import "testing"

func TestInTestModeFollowsEnvironment(t *testing.T) {
	t.Setenv(TestModeEnv, "1")
	RefreshTestMode()
	if !InTestMode() {
		t.Fatal("expected test mode")
	}

	t.Setenv(TestModeEnv, "0")
	RefreshTestMode()
	if InTestMode() {
		t.Fatal("expected test mode to be off")
	}
}
