package daemon_test

import (
	"context"
	"net/http"
	"testing"

	"narrativ/internal/daemon"
	"narrativ/internal/imagegen"
	"narrativ/internal/logging"
	"narrativ/internal/research"
	"narrativ/internal/style"
	"narrativ/internal/testsupport"
)

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	h := daemon.Handlers{
		Planner: research.NewPlanner(nil),
		Images:  imagegen.NewGenerator(cfg.Paths.OutputDir, nil),
		Store:   store,
		Styles:  style.NewCatalog(store),
	}
	d, err := daemon.New(cfg, h, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status()
	if !status.Running || status.APIAddress == "" {
		t.Fatalf("expected running daemon with address, got %+v", status)
	}

	resp, err := http.Get("http://" + status.APIAddress + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestSecondInstanceIsLockedOut(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	h := daemon.Handlers{
		Planner: research.NewPlanner(nil),
		Images:  imagegen.NewGenerator(cfg.Paths.OutputDir, nil),
		Store:   store,
	}
	first, err := daemon.New(cfg, h, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	second, err := daemon.New(cfg, h, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = first.Close()
		_ = second.Close()
	})

	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("expected lock contention error")
	}
}
