package sensor

import (
	"context"
	"errors"
	"testing"
	"time"

	"purifier-go-home/internal/device"
)

func TestSlotLatestWins(t *testing.T) {
	s := NewSlot()
	s.Publish(device.Reading{PM25: 1, Level: device.QualityGood})
	s.Publish(device.Reading{PM25: 2, Level: device.QualityGood})
	s.Publish(device.Reading{PM25: 3, Level: device.QualityGood})

	r, err := s.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if r.PM25 != 3 {
		t.Errorf("PM25 = %d, want 3", r.PM25)
	}
	if got := s.Overwritten(); got != 2 {
		t.Errorf("Overwritten = %d, want 2", got)
	}
}

func TestSlotWaitCancelled(t *testing.T) {
	s := NewSlot()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestSlotWaitBlocksUntilPublish(t *testing.T) {
	s := NewSlot()
	got := make(chan device.Reading, 1)
	go func() {
		r, _ := s.Wait(context.Background())
		got <- r
	}()
	time.Sleep(10 * time.Millisecond)
	s.Publish(device.Reading{PM25: 77, Level: device.QualityModerate})

	select {
	case r := <-got:
		if r.PM25 != 77 {
			t.Errorf("PM25 = %d, want 77", r.PM25)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return")
	}
}
