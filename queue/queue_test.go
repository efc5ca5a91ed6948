package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestKeepUpCompleteness(t *testing.T) {
	// P1: a receiver that polls between every broadcast observes the
	// full sequence in order, with skipped == 0.
	sender, recv := New[int](10)
	defer sender.Close()

	var got []int
	for i := 1; i <= 14; i++ {
		if err := sender.Broadcast(i); err != nil {
			t.Fatalf("broadcast(%d): %v", i, err)
		}
		// Poll exactly once between this broadcast and the next one.
		v, err := recv.TryRecv()
		if err != nil {
			t.Errorf("unexpected TryRecv error mid-stream: %v", err)
			break
		}
		got = append(got, v)
	}

	if len(got) != 14 {
		t.Fatalf("got %d items, want 14: %v", len(got), got)
	}
	for i, v := range got {
		if v != i+1 {
			t.Fatalf("item %d = %d, want %d", i, v, i+1)
		}
	}
	if recv.SkippedItemsSize() != 0 {
		t.Fatalf("skipped = %d, want 0", recv.SkippedItemsSize())
	}
}

func TestScenario1_SkipOnOverrun(t *testing.T) {
	// N=10; publish 1..=14; receiver registered before publish, drains
	// after: observes [5..14], skipped = 4.
	sender, recv := New[int](10)
	defer sender.Close()

	for i := 1; i <= 14; i++ {
		if err := sender.Broadcast(i); err != nil {
			t.Fatalf("broadcast(%d): %v", i, err)
		}
	}

	var got []int
	for {
		v, err := recv.TryRecv()
		if errors.Is(err, ErrQueueEmpty) {
			break
		}
		if err != nil {
			t.Fatalf("TryRecv: %v", err)
		}
		got = append(got, v)
	}

	want := []int{5, 6, 7, 8, 9, 10, 11, 12, 13, 14}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if recv.SkippedItemsSize() != 4 {
		t.Fatalf("skipped = %d, want 4", recv.SkippedItemsSize())
	}
}

func TestScenario2_SingleSlotCrossGoroutine(t *testing.T) {
	// N=1; producer and receiver on separate goroutines.
	sender, recv := New[int](1)
	defer sender.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- sender.Broadcast(10) }()

	v, err := recv.Recv(ctx)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if v != 10 {
		t.Fatalf("got %d, want 10", v)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("broadcast: %v", err)
	}
}

func TestScenario3_ForwardThenClose(t *testing.T) {
	// N=10; producer forwards [1,2,3,4,5] then closes; receiver
	// collects into [1,2,3,4,5].
	sender, recv := New[int](10)

	var got []int
	done := make(chan struct{})
	go func() {
		defer close(done)
		for v := range recv.All(context.Background()) {
			got = append(got, v)
		}
	}()

	for i := 1; i <= 5; i++ {
		if err := sender.Broadcast(i); err != nil {
			t.Fatalf("broadcast(%d): %v", i, err)
		}
	}
	sender.Close()
	<-done

	want := []int{1, 2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestScenario4_PartialDrainThenLap(t *testing.T) {
	// N=4; publish A,B,C,D,E with no reads between; receiver registered
	// before publish then reads three times: observes B,C,D, skipped=1,
	// fourth read yields E, fifth yields Empty (sender still open).
	sender, recv := New[string](4)
	defer sender.Close()

	for _, v := range []string{"A", "B", "C", "D", "E"} {
		if err := sender.Broadcast(v); err != nil {
			t.Fatalf("broadcast(%s): %v", v, err)
		}
	}

	for _, want := range []string{"B", "C", "D"} {
		got, err := recv.TryRecv()
		if err != nil {
			t.Fatalf("TryRecv: %v", err)
		}
		if got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
	if recv.SkippedItemsSize() != 1 {
		t.Fatalf("skipped = %d, want 1", recv.SkippedItemsSize())
	}

	got, err := recv.TryRecv()
	if err != nil || got != "E" {
		t.Fatalf("4th TryRecv = (%q, %v), want (E, nil)", got, err)
	}

	if _, err := recv.TryRecv(); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("5th TryRecv err = %v, want ErrQueueEmpty", err)
	}
}

func TestScenario5_FastAndSlowReceiver(t *testing.T) {
	// N=2; two receivers, one reads after every publish, one reads only
	// after all publishes: fast one observes all 100, slow one observes
	// at most 2 items with skipped = 98.
	sender, fast := New[int](2)
	defer sender.Close()
	slow := fast.Clone()
	defer slow.Close()

	var fastGot []int
	for i := 0; i < 100; i++ {
		if err := sender.Broadcast(i); err != nil {
			t.Fatalf("broadcast(%d): %v", i, err)
		}
		v, err := fast.Recv(context.Background())
		if err != nil {
			t.Errorf("fast recv: %v", err)
			break
		}
		fastGot = append(fastGot, v)
	}

	if len(fastGot) != 100 {
		t.Fatalf("fast receiver got %d items, want 100", len(fastGot))
	}

	var slowGot []int
	for {
		v, err := slow.TryRecv()
		if errors.Is(err, ErrQueueEmpty) {
			break
		}
		if err != nil {
			t.Fatalf("slow TryRecv: %v", err)
		}
		slowGot = append(slowGot, v)
	}
	if len(slowGot) > 2 {
		t.Fatalf("slow receiver got %d items, want at most 2", len(slowGot))
	}
	if slow.SkippedItemsSize() != 98 {
		t.Fatalf("slow skipped = %d, want 98", slow.SkippedItemsSize())
	}
}

func TestScenario6_CloneIsolation(t *testing.T) {
	// N=8; publish 16 items, clone after the 8th, then publish 8 more:
	// clone observes only the last 8 items (P7, clone isolation).
	sender, recv := New[int](8)
	defer sender.Close()

	for i := 1; i <= 8; i++ {
		if err := sender.Broadcast(i); err != nil {
			t.Fatalf("broadcast(%d): %v", i, err)
		}
	}

	clone := recv.Clone()
	defer clone.Close()

	for i := 9; i <= 16; i++ {
		if err := sender.Broadcast(i); err != nil {
			t.Fatalf("broadcast(%d): %v", i, err)
		}
	}

	var got []int
	for {
		v, err := clone.TryRecv()
		if errors.Is(err, ErrQueueEmpty) {
			break
		}
		if err != nil {
			t.Fatalf("TryRecv: %v", err)
		}
		got = append(got, v)
	}

	want := []int{9, 10, 11, 12, 13, 14, 15, 16}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if clone.SkippedItemsSize() != 0 {
		t.Fatalf("clone skipped = %d, want 0", clone.SkippedItemsSize())
	}
}

func TestNoSubscribersReturnsValue(t *testing.T) {
	// P6: with zero receivers, every broadcast returns the value back.
	sender, recv := New[string](4)
	recv.Close()

	err := sender.Broadcast("hello")
	var disc *DisconnectedError[string]
	if !errors.As(err, &disc) {
		t.Fatalf("err = %v, want *DisconnectedError[string]", err)
	}
	if disc.Value != "hello" {
		t.Fatalf("disc.Value = %q, want %q", disc.Value, "hello")
	}
}

func TestDisconnectLiveness(t *testing.T) {
	// P5: after the sender drops, every pending Recv returns within
	// finite time (a remaining item or ErrProducerGone).
	sender, recv := New[int](4)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		_, err := recv.Recv(ctx)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	sender.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrProducerGone) {
			t.Fatalf("err = %v, want ErrProducerGone", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Recv did not return after sender closed")
	}
}

func TestBoundedWindow(t *testing.T) {
	// P2: the set of indices visible to a receiver is always a suffix
	// of [wi-N, wi).
	sender, recv := New[int](4)
	defer sender.Close()

	for i := 0; i < 4; i++ {
		_ = sender.Broadcast(i)
	}
	for i := 4; i < 1000; i++ {
		_ = sender.Broadcast(i)
		if recv.Len() > 4 {
			t.Fatalf("Len() = %d, want <= 4", recv.Len())
		}
	}
}

func TestSkipAccounting(t *testing.T) {
	// P3: delivered_count + skipped == wi_at_deregister - wi_at_register.
	sender, recv := New[int](4)
	defer sender.Close()

	const total = 50
	for i := 0; i < total; i++ {
		_ = sender.Broadcast(i)
	}

	delivered := 0
	for {
		_, err := recv.TryRecv()
		if errors.Is(err, ErrQueueEmpty) {
			break
		}
		if err != nil {
			t.Fatalf("TryRecv: %v", err)
		}
		delivered++
	}

	if uint64(delivered)+recv.SkippedItemsSize() != total {
		t.Fatalf("delivered(%d) + skipped(%d) != %d", delivered, recv.SkippedItemsSize(), total)
	}
}

func TestWrapAroundCorrectness(t *testing.T) {
	// P8: P1-P3 still hold once wi has advanced well past 2*N.
	sender, recv := New[int](16)
	defer sender.Close()

	const total = 1000 // > 2 * capacity
	delivered := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for delivered < total {
			if _, err := recv.Recv(context.Background()); err != nil {
				return
			}
			delivered++
		}
	}()

	for i := 0; i < total; i++ {
		if err := sender.Broadcast(i); err != nil {
			t.Fatalf("broadcast(%d): %v", i, err)
		}
	}
	sender.Close()
	<-done

	if uint64(delivered)+recv.SkippedItemsSize() != total {
		t.Fatalf("delivered(%d) + skipped(%d) != %d", delivered, recv.SkippedItemsSize(), total)
	}
}

func TestConcurrentReceiversStress(t *testing.T) {
	sender, recv := New[int](128)
	defer sender.Close()

	const readers = 8
	const total = 5000

	var wg sync.WaitGroup
	results := make([][]int, readers)
	for i := 0; i < readers; i++ {
		r := recv
		if i > 0 {
			r = recv.Clone()
		}
		wg.Add(1)
		go func(idx int, r *Receiver[int]) {
			defer wg.Done()
			defer r.Close()
			for {
				v, err := r.Recv(context.Background())
				if err != nil {
					return
				}
				results[idx] = append(results[idx], v)
			}
		}(i, r)
	}

	for i := 0; i < total; i++ {
		if err := sender.Broadcast(i); err != nil {
			t.Fatalf("broadcast(%d): %v", i, err)
		}
	}
	sender.Close()
	wg.Wait()

	for i, got := range results {
		for j := 1; j < len(got); j++ {
			if got[j] <= got[j-1] {
				t.Fatalf("reader %d: out-of-order delivery %v", i, got)
			}
		}
	}
}
