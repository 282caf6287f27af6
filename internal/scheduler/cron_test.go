package scheduler

import (
	"testing"
)

func TestCronRegisterReplacesExistingKey(t *testing.T) {
	runner, _ := newTestRunner(t)
	c := NewCron(runner, nil, 0)

	if err := c.Register("heartbeat", "@every 1h", 1, "tick", nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	firstID := c.entries["heartbeat"]

	if err := c.Register("heartbeat", "@every 2h", 1, "tick", nil); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if c.entries["heartbeat"] == firstID {
		t.Fatalf("expected re-registration to assign a new cron entry id")
	}
	if len(c.entries) != 1 {
		t.Fatalf("expected exactly one tracked entry, got %d", len(c.entries))
	}
}

func TestCronUnregisterRemovesEntry(t *testing.T) {
	runner, _ := newTestRunner(t)
	c := NewCron(runner, nil, 0)

	if err := c.Register("heartbeat", "@every 1h", 1, "tick", nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	c.Unregister("heartbeat")
	if _, ok := c.entries["heartbeat"]; ok {
		t.Fatalf("expected entry removed after unregister")
	}
}

func TestCronRegisterRejectsInvalidExpression(t *testing.T) {
	runner, _ := newTestRunner(t)
	c := NewCron(runner, nil, 0)

	if err := c.Register("bad", "not a cron expression", 1, "tick", nil); err == nil {
		t.Fatal("expected an error for a malformed cron expression")
	}
}
