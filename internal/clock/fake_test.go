package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeNowAdvances(t *testing.T) {
	c := NewFake(epoch)
	assert.Equal(t, epoch, c.Now())

	c.Advance(90 * time.Second)
	assert.Equal(t, epoch.Add(90*time.Second), c.Now())

	c.Set(epoch)
	assert.Equal(t, epoch, c.Now())
}

func TestFakeTickerFires(t *testing.T) {
	c := NewFake(epoch)
	ticker := c.NewTicker(time.Second)
	defer ticker.Stop()

	c.Advance(500 * time.Millisecond)
	select {
	case <-ticker.C:
		t.Fatal("ticked before interval elapsed")
	default:
	}

	c.Advance(500 * time.Millisecond)
	select {
	case got := <-ticker.C:
		assert.Equal(t, epoch.Add(time.Second), got)
	default:
		t.Fatal("expected tick")
	}
}

func TestFakeTickerDropsWhenFull(t *testing.T) {
	c := NewFake(epoch)
	ticker := c.NewTicker(time.Second)

	c.Advance(time.Second)
	c.Advance(time.Second)
	<-ticker.C
	select {
	case <-ticker.C:
		t.Fatal("expected dropped tick")
	default:
	}
}

func TestFakeStoppedTickerIsSilent(t *testing.T) {
	c := NewFake(epoch)
	ticker := c.NewTicker(time.Second)
	ticker.Stop()

	c.Advance(5 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestBlockUntilTickers(t *testing.T) {
	c := NewFake(epoch)
	done := make(chan struct{})
	go func() {
		c.BlockUntilTickers(1)
		close(done)
	}()

	c.NewTicker(time.Second)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "BlockUntilTickers did not return")
	}
}
