package lang

import (
	"context"
	"errors"
	"testing"

	"github.com/mainstar123/finchat/pkg/providers/mock"
)

func TestLLMDetectorParsesClassification(t *testing.T) {
	adapter := mock.NewLLMAdapter(mock.LLMConfig{
		ResponseText: "```json\n{\"language\":\"ES\",\"confidence\":0.92}\n```",
	})
	d := NewLLMDetector(adapter)

	det, err := d.Detect(context.Background(), "hola, quiero registrarme")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if det.Code != "es" {
		t.Fatalf("code = %q, want es", det.Code)
	}
	if det.Name != "Spanish" {
		t.Fatalf("name = %q, want Spanish", det.Name)
	}
	if det.Confidence != 0.92 {
		t.Fatalf("confidence = %v, want 0.92", det.Confidence)
	}
}

func TestLLMDetectorDefaultsMissingConfidence(t *testing.T) {
	adapter := mock.NewLLMAdapter(mock.LLMConfig{ResponseText: `{"language":"pt"}`})
	d := NewLLMDetector(adapter)

	det, err := d.Detect(context.Background(), "bom dia")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if det.Confidence != 0.4 {
		t.Fatalf("confidence = %v, want 0.4", det.Confidence)
	}
}

func TestLLMDetectorRejectsEmptyInput(t *testing.T) {
	d := NewLLMDetector(mock.NewLLMAdapter(mock.LLMConfig{}))
	if _, err := d.Detect(context.Background(), "   "); err == nil {
		t.Fatal("want error for empty text")
	}
}

func TestLLMDetectorPropagatesFailures(t *testing.T) {
	boom := errors.New("upstream down")
	d := NewLLMDetector(mock.NewLLMAdapter(mock.LLMConfig{Err: boom}))
	if _, err := d.Detect(context.Background(), "hello"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}

	d = NewLLMDetector(mock.NewLLMAdapter(mock.LLMConfig{ResponseText: "not json"}))
	if _, err := d.Detect(context.Background(), "hello"); err == nil {
		t.Fatal("want error for malformed output")
	}
}

func TestDisplayNameFallsBackToCode(t *testing.T) {
	if got := DisplayName("EN"); got != "English" {
		t.Fatalf("DisplayName(EN) = %q", got)
	}
	if got := DisplayName("xx"); got != "xx" {
		t.Fatalf("DisplayName(xx) = %q", got)
	}
}

func TestStaticDetector(t *testing.T) {
	d := StaticDetector{Result: Detection{Code: "en", Confidence: 1}}
	det, err := d.Detect(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if det.Code != "en" {
		t.Fatalf("code = %q", det.Code)
	}
}
