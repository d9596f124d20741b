package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/directory"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/dto"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/entity"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/progress"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/resolver"
)

func TestRunList_PrintsSourceAndRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dto.DirectoryResponse{
			Businesses: []entity.Business{{ID: "b1", Name: "Gulf Visa Centre", Category: "Visa Services", Rating: 4.5, ReviewCount: 12}},
			Total:      1,
			DataSource: directory.SourceDatabase,
		})
	}))
	defer srv.Close()

	var out bytes.Buffer
	if err := runList(context.Background(), []string{"-api", srv.URL, "-no-snapshot", "-limit", "5"}, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := out.String()
	if !strings.HasPrefix(got, "source: api (database)\n") {
		t.Fatalf("unexpected banner: %q", got)
	}
	if !strings.Contains(got, "Gulf Visa Centre") || !strings.Contains(got, "4.5") {
		t.Fatalf("missing row: %q", got)
	}
}

func TestRunList_RejectsUnknownSort(t *testing.T) {
	var out bytes.Buffer
	if err := runList(context.Background(), []string{"-sort", "distance"}, &out); err == nil {
		t.Fatalf("expected sort error")
	}
}

func TestRunShow_FallsBackToSamples(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>index</body></html>"))
	}))
	defer srv.Close()
	sample := directory.Samples()[0]

	var out bytes.Buffer
	if err := runShow(context.Background(), []string{"-api", srv.URL, "-no-snapshot", sample.ID}, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "source: sample") || !strings.Contains(got, resolver.DemoModeMessage) {
		t.Fatalf("expected demo banner, got %q", got)
	}
	if !strings.Contains(got, "warning: "+resolver.Describe(resolver.ErrRoutingMisconfigured)) {
		t.Fatalf("expected routing warning, got %q", got)
	}
	if !strings.Contains(got, sample.Name) {
		t.Fatalf("expected sample record, got %q", got)
	}

	if err := runShow(context.Background(), []string{"-api", srv.URL, "-no-snapshot"}, &out); err == nil {
		t.Fatalf("expected missing id error")
	}
}

func TestPrintFrame(t *testing.T) {
	var out bytes.Buffer
	printFrame(&out, progress.Frame{
		BatchNumber:     2,
		Processed:       3,
		TotalBusinesses: 10,
		Status:          "processing",
		Logos:           1,
		Photos:          4,
		CurrentBusiness: "Gulf Visa Centre",
		Errors:          []string{"b1: timeout"},
	})
	got := out.String()
	for _, want := range []string{"batch 2", "3/10", "logos=1", "photos=4", "Gulf Visa Centre", "errors=1 (last: b1: timeout)"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}
}

func TestTerminalJobState(t *testing.T) {
	for status, want := range map[string]bool{
		entity.JobCompleted: true,
		entity.JobFailed:    true,
		entity.JobCancelled: true,
		"processing":        false,
		entity.JobQueued:    false,
	} {
		if got := terminalJobState(status); got != want {
			t.Fatalf("terminalJobState(%q) = %v, want %v", status, got, want)
		}
	}
}
