package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/jkoufopoulos/shopq-prototype-sub001/core/domain"
)

func renderContext(t *testing.T) *domain.PipelineContext {
	t.Helper()
	now := time.Date(2025, 11, 18, 14, 0, 0, 0, time.UTC)
	pc := newTestContext(t, nil, now, "UTC")
	pc.Greeting = "Good morning! It's Tuesday, November 18th."

	eventTime := timePtr(time.Date(2025, 11, 18, 23, 30, 0, 0, time.UTC))
	dinner := &domain.Entity{
		Type:           domain.EntityEvent,
		SourceEmailID:  "e1",
		SourceThreadID: "t1",
		Event:          &domain.EventDetails{Title: "Dinner with Sarah", EventTime: eventTime},
	}
	pc.FeaturedItems = []domain.FeaturedItem{
		{Section: domain.SectionToday, Entity: dinner},
		{Section: domain.SectionComingUp, Email: &domain.Email{
			ID: "e2", ThreadID: "t2", Subject: "Trial ends soon",
		}},
		{Section: domain.SectionWorthKnowing, Email: &domain.Email{
			ID: "e3", ThreadID: "t3", Subject: "Receipt from Blue Bottle",
		}},
	}
	pc.NoiseSummary = map[string]int{"newsletter": 3, "promotion": 1}
	return pc
}

func TestRenderDigestDeterministic(t *testing.T) {
	pc := renderContext(t)
	first := RenderDigest(pc)
	for i := 0; i < 5; i++ {
		if again := RenderDigest(pc); again != first {
			t.Fatal("renderer must be byte-stable across runs")
		}
	}
}

func TestRenderDigestStructure(t *testing.T) {
	pc := renderContext(t)
	html := RenderDigest(pc)

	if !strings.Contains(html, "Good morning!") {
		t.Error("greeting missing")
	}
	for _, heading := range []string{"Today / Urgent", "Coming Up", "Worth Knowing"} {
		if !strings.Contains(html, heading) {
			t.Errorf("heading %q missing", heading)
		}
	}
	// Global numbering across sections.
	for _, li := range []string{`<li value="1">`, `<li value="2">`, `<li value="3">`} {
		if !strings.Contains(html, li) {
			t.Errorf("numbered item %s missing", li)
		}
	}
	if !strings.Contains(html, "https://mail.google.com/mail/u/0/#inbox/t1") {
		t.Error("entity card must link to its thread")
	}
	// Noise footer with per-type label links, fixed order.
	if !strings.Contains(html, "3 newsletters") || !strings.Contains(html, "1 promotion") {
		t.Error("noise summary missing or not pluralized correctly")
	}
	if !strings.Contains(html, "#label/mailq%2Fnewsletter") {
		t.Error("noise counts must link to the per-type label")
	}
	if strings.Index(html, "newsletters") > strings.Index(html, "promotion") {
		t.Error("noise types must render in fixed order")
	}
}

func TestRenderDigestEscapesUserContent(t *testing.T) {
	now := time.Date(2025, 11, 18, 14, 0, 0, 0, time.UTC)
	pc := newTestContext(t, nil, now, "UTC")
	pc.FeaturedItems = []domain.FeaturedItem{
		{Section: domain.SectionToday, Email: &domain.Email{
			ID: "e1", ThreadID: "t1", Subject: `Alert <script>alert(1)</script> & more`,
		}},
	}

	html := RenderDigest(pc)
	if strings.Contains(html, "<script>") {
		t.Error("subject content must be escaped")
	}
	if !strings.Contains(html, "&lt;script&gt;") {
		t.Error("escaped subject should appear")
	}
	if !strings.Contains(html, "&amp; more") {
		t.Error("ampersands must be escaped")
	}
}

func TestRenderDigestEmpty(t *testing.T) {
	now := time.Date(2025, 11, 18, 14, 0, 0, 0, time.UTC)
	pc := newTestContext(t, nil, now, "UTC")
	pc.Greeting = "Good morning!"

	html := RenderDigest(pc)
	if !strings.Contains(html, "Your inbox is clear") {
		t.Error("empty digest should show the clear block")
	}
	if strings.Contains(html, "<ol>") {
		t.Error("empty digest should carry no lists")
	}
}

func TestRenderFallbackDigest(t *testing.T) {
	emails := []domain.Email{
		{ID: "a", ThreadID: "ta", Subject: "Fraud alert", Importance: domain.ImportanceCritical},
		{ID: "b", ThreadID: "tb", Subject: "Flight tomorrow", Importance: domain.ImportanceTimeSensitive},
		{ID: "c", ThreadID: "tc", Subject: "Newsletter"},
	}

	html := RenderFallbackDigest(emails, "Good evening!")

	for _, heading := range []string{"Critical", "Time Sensitive", "Everything Else"} {
		if !strings.Contains(html, heading) {
			t.Errorf("heading %q missing", heading)
		}
	}
	if strings.Index(html, "Fraud alert") > strings.Index(html, "Flight tomorrow") {
		t.Error("critical emails must render first")
	}
	// Missing importance groups under routine.
	if !strings.Contains(html, "Newsletter") {
		t.Error("email without importance must still render")
	}
	if !strings.Contains(html, "#inbox/ta") {
		t.Error("fallback cards must link to their threads")
	}
}

func TestRenderPlainText(t *testing.T) {
	pc := renderContext(t)
	html := RenderDigest(pc)
	text := RenderPlainText(html)

	if strings.Contains(text, "<") || strings.Contains(text, ">") {
		t.Errorf("plain text must carry no markup: %q", text)
	}
	if strings.Contains(text, "font-family") {
		t.Error("style block must be stripped")
	}
	if !strings.Contains(text, "Dinner with Sarah") {
		t.Error("card titles must survive")
	}
	if !strings.Contains(text, "Receipt from Blue Bottle") {
		t.Error("email subjects must survive")
	}
	if CountWords(text) == 0 {
		t.Error("word count must be positive")
	}
}
