package agent

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

func TestTransportFunc(t *testing.T) {
	var transport Transport = TransportFunc(func(ctx context.Context, req *TurnRequest) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(`{"type":"text","text":"` + req.Messages[0].Content + `"}` + "\n")), nil
	})

	req := NewTurnRequest("c1", "u1", []Message{{Role: RoleUser, Content: "echo"}}, RequestContext{}, nil, nil)
	rc, err := transport.Open(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()

	var texts []string
	if err := NewDecoder().Decode(context.Background(), rc, func(ev Event) bool {
		texts = append(texts, ev.Payload.(Text).Text)
		return true
	}); err != nil {
		t.Fatal(err)
	}
	if len(texts) != 1 || texts[0] != "echo" {
		t.Errorf("expected [echo], got %v", texts)
	}
}

func TestRequestContextEqual(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := RequestContext{
		Cluster:           "prod",
		Namespace:         "default",
		TimeRange:         &TimeRange{Start: start, End: start.Add(time.Hour)},
		SelectedResources: []ResourceRef{{Kind: "Pod", Name: "web-1", Namespace: "default"}},
		Extra:             map[string]string{"view": "logs"},
	}
	b := a.Clone()

	if !a.Equal(b) {
		t.Error("expected clone to be equal")
	}

	b.SelectedResources[0].Name = "web-2"
	if a.Equal(b) {
		t.Error("expected different selected resources to be unequal")
	}
	if a.SelectedResources[0].Name != "web-1" {
		t.Error("clone shares selected resources with original")
	}

	c := a.Clone()
	c.TimeRange.End = start.Add(2 * time.Hour)
	if a.Equal(c) {
		t.Error("expected different time range to be unequal")
	}

	d := a.Clone()
	d.TimeRange = nil
	if a.Equal(d) {
		t.Error("expected nil time range to be unequal")
	}

	e := a.Clone()
	e.Extra["view"] = "events"
	if a.Equal(e) {
		t.Error("expected different extra to be unequal")
	}

	if !(RequestContext{}).Equal(RequestContext{SelectedResources: []ResourceRef{}}) {
		t.Error("expected nil and empty selections to be equal")
	}
}

func TestNewTurnRequestSnapshots(t *testing.T) {
	temp := float32(0.2)
	tools := &ToolPreferences{MaxToolCalls: 5, EnabledTools: []string{"kubectl"}}
	model := &ModelPreferences{ProviderID: "anthropic", Temperature: &temp}
	history := []Message{{Role: RoleUser, Content: "hi"}}

	req := NewTurnRequest("c1", "u1", history, RequestContext{Namespace: "default"}, tools, model)

	tools.MaxToolCalls = 1
	tools.EnabledTools[0] = "helm"
	temp = 0.9
	history[0].Content = "changed"

	if req.ToolPreferences.MaxToolCalls != 5 || req.ToolPreferences.EnabledTools[0] != "kubectl" {
		t.Errorf("tool preferences not snapshotted: %+v", req.ToolPreferences)
	}
	if *req.ModelPreferences.Temperature != 0.2 {
		t.Errorf("model preferences not snapshotted: %v", *req.ModelPreferences.Temperature)
	}
	if req.Messages[0].Content != "hi" {
		t.Errorf("messages not snapshotted: %q", req.Messages[0].Content)
	}
}
