package supervisor

import (
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func startSupervisor(t *testing.T, handler http.Handler, grace time.Duration) (*Supervisor, context.CancelFunc, chan error) {
	t.Helper()
	sup := New(&http.Server{Handler: handler}, grace, zerolog.Nop())
	if err := sup.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sup.Run(ctx)
	}()
	return sup, cancel, done
}

func TestBindFailureSurfaces(t *testing.T) {
	first := New(&http.Server{}, time.Second, zerolog.Nop())
	if err := first.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer first.listener.Close()

	second := New(&http.Server{}, time.Second, zerolog.Nop())
	if err := second.Listen(first.Addr().String()); err == nil {
		t.Fatal("second bind on the same address succeeded")
	}
}

func TestSignalDrivenShutdown(t *testing.T) {
	const inflight = 3
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	})

	sup, cancel, done := startSupervisor(t, handler, 5*time.Second)
	addr := "http://" + sup.Addr().String()

	if got := sup.State(); got != Running {
		t.Fatalf("state = %v, want running", got)
	}

	var wg sync.WaitGroup
	codes := make(chan int, inflight)
	for i := 0; i < inflight; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Get(addr)
			if err != nil {
				return
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			codes <- resp.StatusCode
		}()
	}

	// Give the in-flight requests time to reach the handler, then
	// trigger shutdown while they are still blocked.
	time.Sleep(100 * time.Millisecond)
	cancel()

	// The listener must stop accepting before in-flight work drains.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		client := http.Client{Timeout: 100 * time.Millisecond}
		if _, err := client.Get(addr); err != nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	close(release)
	wg.Wait()
	close(codes)
	for code := range codes {
		if code != http.StatusOK {
			t.Fatalf("in-flight request status = %d, want 200", code)
		}
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v, want nil on clean shutdown", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after listener closure")
	}
	if got := sup.State(); got != Terminated {
		t.Fatalf("state = %v, want terminated", got)
	}

	if _, err := http.Get(addr); err == nil {
		t.Fatal("listener still accepting after shutdown")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	sup, cancel, done := startSupervisor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), time.Second)
	defer cancel()

	// Duplicate triggers from multiple goroutines collapse into one
	// shutdown sequence.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sup.Shutdown()
		}()
	}
	wg.Wait()
	sup.Shutdown()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	if got := sup.State(); got != Terminated {
		t.Fatalf("state = %v, want terminated", got)
	}
}

func TestGraceExpiryHardCloses(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	})

	sup, cancel, done := startSupervisor(t, handler, 50*time.Millisecond)
	addr := "http://" + sup.Addr().String()

	go func() {
		resp, err := http.Get(addr)
		if err == nil {
			resp.Body.Close()
		}
	}()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run hung past the drain grace period")
	}
}
