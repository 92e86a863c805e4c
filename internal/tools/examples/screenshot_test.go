package examples

import (
	"context"
	"testing"
)

func TestScreenshotValidateRejectsBadFormat(t *testing.T) {
	s := NewScreenshot()
	vr := s.Validate(map[string]any{"format": "bmp"})
	if vr.Valid {
		t.Fatal("expected invalid for unsupported format")
	}
}

func TestScreenshotExecuteReturnsImageData(t *testing.T) {
	s := NewScreenshot()
	result, err := s.Execute(context.Background(), map[string]any{"fullPage": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	data, ok := result.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected map data, got %T", result.Data)
	}
	if _, ok := data["screenshot"]; !ok {
		t.Fatal("expected a screenshot field in result data")
	}
}

func TestScreenshotCapabilitiesDeclareTimeout(t *testing.T) {
	s := NewScreenshot()
	if s.Capabilities().TimeoutMs != 15000 {
		t.Fatalf("TimeoutMs = %d, want 15000", s.Capabilities().TimeoutMs)
	}
}
