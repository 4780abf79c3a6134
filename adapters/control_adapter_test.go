package adapters_test

import (
	"testing"
	"time"

	"github.com/momentics/l3router/adapters"
)

func TestControlAdapterBasic(t *testing.T) {
	ctrl := adapters.NewControlAdapter()
	cfg := ctrl.GetConfig()
	if len(cfg) != 0 {
		t.Error("Expected empty config on init")
	}
	err := ctrl.SetConfig(map[string]any{"k": 1})
	if err != nil {
		t.Fatal(err)
	}
	if got := ctrl.GetConfig()["k"]; got != 1 {
		t.Errorf("SetConfig did not apply, got %v", got)
	}

	done := make(chan struct{})
	ctrl.OnReload(func() { close(done) })
	ctrl.SetConfig(map[string]any{"x": 2})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("reload hook not called")
	}
}
