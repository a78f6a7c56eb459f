package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nao1215/freezedry/internal/model"
)

func TestObserveFetch(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveFetch(200, 100, time.Millisecond, false, nil)
	m.ObserveFetch(200, 50, time.Millisecond, false, nil)
	m.ObserveFetch(0, 0, time.Millisecond, true, nil)
	m.ObserveFetch(0, 0, time.Second, false, errors.New("refused"))

	tests := []struct {
		result string
		want   float64
	}{
		{ResultOK, 2},
		{ResultCached, 1},
		{ResultError, 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(m.fetches.WithLabelValues(tt.result)); got != tt.want {
			t.Errorf("fetches{result=%q} = %v, want %v", tt.result, got, tt.want)
		}
	}
	if got := testutil.ToFloat64(m.fetchBytes); got != 150 {
		t.Errorf("fetch bytes = %v, want 150", got)
	}
}

func TestObserveCapture(t *testing.T) {
	t.Parallel()

	m := New()
	start := time.Now()
	ok := model.NewCapture("1", "https://a/", start)
	ok.FinishedAt = start.Add(2 * time.Second)
	ok.Bytes = 1024
	ok.Resources["image"] = 3
	ok.Failures = []model.Failure{{URL: "https://a/x.png", Type: "image", Error: "404"}}

	failed := model.NewCapture("2", "https://b/", start)
	failed.FinishedAt = start.Add(time.Second)
	failed.Error = "unreachable"

	m.ObserveCapture(ok)
	m.ObserveCapture(failed)

	if got := testutil.ToFloat64(m.captures.WithLabelValues("success")); got != 1 {
		t.Errorf("captures{success} = %v", got)
	}
	if got := testutil.ToFloat64(m.captures.WithLabelValues("failure")); got != 1 {
		t.Errorf("captures{failure} = %v", got)
	}
	if got := testutil.ToFloat64(m.resources.WithLabelValues("image", "resolved")); got != 3 {
		t.Errorf("resources{image,resolved} = %v", got)
	}
	if got := testutil.ToFloat64(m.resources.WithLabelValues("image", "failed")); got != 1 {
		t.Errorf("resources{image,failed} = %v", got)
	}
}

func TestWriteToTextfile(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveFetch(200, 10, time.Millisecond, false, nil)

	path := filepath.Join(t.TempDir(), "freezedry.prom")
	if err := m.WriteToTextfile(path); err != nil {
		t.Fatalf("WriteToTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), `freezedry_fetches_total{result="ok"} 1`) {
		t.Errorf("textfile missing fetch counter:\n%s", data)
	}

	if err := m.WriteToTextfile(filepath.Join(t.TempDir(), "missing", "x.prom")); err == nil {
		t.Error("expected error writing to a missing directory")
	}
}
