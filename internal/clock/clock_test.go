package clock

import (
	"testing"
	"time"
)

func TestRealAfterFunc(t *testing.T) {
	c := Real()
	fired := make(chan struct{})
	c.AfterFunc(time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestRealStop(t *testing.T) {
	c := Real()
	tm := c.AfterFunc(time.Hour, func() { t.Error("stopped timer fired") })
	if !tm.Stop() {
		t.Fatal("expected Stop to report an active timer")
	}
	if c.Now().Location() != time.UTC {
		t.Fatal("expected UTC time")
	}
}
