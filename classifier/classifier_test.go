package classifier

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"lead-harvester/models"
	"lead-harvester/utils"
)

// scriptedBackend replies in order; once the script is exhausted the last
// reply repeats.
type scriptedBackend struct {
	mu      sync.Mutex
	replies []reply
	prompts []string
}

type reply struct {
	out string
	err error
}

func (b *scriptedBackend) Name() string { return "scripted" }

func (b *scriptedBackend) Complete(_ context.Context, prompt, _ string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prompts = append(b.prompts, prompt)
	if len(b.replies) == 0 {
		return "", errors.New("no reply scripted")
	}
	r := b.replies[0]
	if len(b.replies) > 1 {
		b.replies = b.replies[1:]
	}
	return r.out, r.err
}

func (b *scriptedBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.prompts)
}

func newTestClassifier(b TextClassifier) *Classifier {
	return New(b, Config{
		Model:             "test-model",
		Criteria:          "FSBO only",
		ViabilityCriteria: "Central, 2+ bedrooms",
		PrivateKeywords:   []string{"Private seller", "for sale by owner", "fsbo", "no agency"},
		AgentKeywords:     []string{"agency", "broker", "realtor"},
		PhoneRegion:       "LU",
		SellerBackoff:     time.Millisecond,
	}, utils.NewLoggerTo(io.Discard), utils.NewShutdown())
}

func TestCallJSONStrictRetryOnce(t *testing.T) {
	b := &scriptedBackend{replies: []reply{{out: "Sure! eligible"}, {out: "```json\n{\"eligible\": true}\n```"}}}
	var out struct {
		Eligible bool `json:"eligible"`
	}
	if err := CallJSON(context.Background(), b, "prompt", "m", &out); err != nil {
		t.Fatalf("CallJSON: %v", err)
	}
	if !out.Eligible {
		t.Error("expected eligible=true")
	}
	if b.calls() != 2 {
		t.Fatalf("expected 2 calls, got %d", b.calls())
	}
	if !strings.HasSuffix(b.prompts[1], "Strict JSON only.") {
		t.Errorf("retry prompt missing strict suffix: %q", b.prompts[1])
	}
}

func TestCallJSONMalformedAfterRetry(t *testing.T) {
	b := &scriptedBackend{replies: []reply{{out: "nope"}}}
	var out map[string]any
	err := CallJSON(context.Background(), b, "prompt", "m", &out)
	if !errors.Is(err, ErrMalformedOutput) {
		t.Fatalf("expected ErrMalformedOutput, got %v", err)
	}
	if b.calls() != 2 {
		t.Errorf("expected exactly one retry, got %d calls", b.calls())
	}
}

func TestCallJSONRetryDiscardsRejectedReply(t *testing.T) {
	b := &scriptedBackend{replies: []reply{
		{out: `{"eligible": true, "reason": 5}`},
		{out: `{"reason": "agency listing"}`},
	}}
	ok, reason := newTestClassifier(b).Eligibility(context.Background(), "Flat in Kirchberg")
	if ok {
		t.Error("fields from the rejected reply leaked into the result")
	}
	if reason != "agency listing" {
		t.Errorf("reason = %q", reason)
	}
	if b.calls() != 2 {
		t.Errorf("expected 2 calls, got %d", b.calls())
	}
}

func TestCallJSONRejectsNonPointer(t *testing.T) {
	b := &scriptedBackend{replies: []reply{{out: `{}`}}}
	var out struct{}
	if err := CallJSON(context.Background(), b, "prompt", "m", out); err == nil {
		t.Fatal("expected an error for a non-pointer target")
	}
	if b.calls() != 0 {
		t.Errorf("backend called %d times", b.calls())
	}
}

func TestCallJSONBackendErrorNotRetried(t *testing.T) {
	b := &scriptedBackend{replies: []reply{{err: errors.New("connection refused")}}}
	var out map[string]any
	if err := CallJSON(context.Background(), b, "prompt", "m", &out); err == nil || errors.Is(err, ErrMalformedOutput) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if b.calls() != 1 {
		t.Errorf("expected 1 call, got %d", b.calls())
	}
}

func TestKeywordSellerFastPath(t *testing.T) {
	b := &scriptedBackend{}
	c := newTestClassifier(b)

	j := c.SellerType(context.Background(), "Lovely house, for sale by owner, call me")
	if !j.IsPrivate || j.Confidence < 8 || !j.Heuristic {
		t.Errorf("private keyword only: %+v", j)
	}
	j = c.SellerType(context.Background(), "Presented by Luxe Realty agency, broker fees apply")
	if j.IsPrivate || j.Confidence < 8 {
		t.Errorf("agent keyword only: %+v", j)
	}
	if b.calls() != 0 {
		t.Errorf("fast path must not call the model, got %d calls", b.calls())
	}
}

func TestSellerTypeAmbiguousUsesModel(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"both keyword families", "Private seller, no agency fees, previously listed with a broker"},
		{"no keywords", "Three bedroom flat near the park"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &scriptedBackend{replies: []reply{{out: `{"is_private": true, "confidence": "7", "reason": "owner voice"}`}}}
			j := newTestClassifier(b).SellerType(context.Background(), tt.text)
			if b.calls() != 1 {
				t.Fatalf("expected model call, got %d", b.calls())
			}
			if !j.IsPrivate || j.Confidence != 7 || j.Heuristic {
				t.Errorf("judgement = %+v", j)
			}
		})
	}
}

func TestSellerTypeDefaultsAfterFailures(t *testing.T) {
	b := &scriptedBackend{replies: []reply{{err: errors.New("timeout")}}}
	j := newTestClassifier(b).SellerType(context.Background(), "Flat near the park")
	if j.IsPrivate || j.Confidence != 0 {
		t.Errorf("expected conservative default, got %+v", j)
	}
	if b.calls() != 3 {
		t.Errorf("expected 3 attempts, got %d", b.calls())
	}
}

func TestEligibility(t *testing.T) {
	b := &scriptedBackend{replies: []reply{{out: `{"eligible": true, "reason": "owner sale"}`}}}
	c := newTestClassifier(b)
	ok, reason := c.Eligibility(context.Background(), "Private seller, 3 bedroom apartment")
	if !ok || reason != "owner sale" {
		t.Errorf("Eligibility = %v %q", ok, reason)
	}
	if !strings.Contains(b.prompts[0], "FSBO only") {
		t.Error("criteria missing from prompt")
	}

	failing := newTestClassifier(&scriptedBackend{replies: []reply{{out: "garbage"}}})
	if ok, _ := failing.Eligibility(context.Background(), "x"); ok {
		t.Error("malformed output should be ineligible")
	}
}

func TestViability(t *testing.T) {
	b := &scriptedBackend{replies: []reply{{out: `{"viable": true, "rating": 14, "reason": "central", "qualification_factors": ["central", "balcony"]}`}}}
	v := newTestClassifier(b).Viability(context.Background(), "flat")
	if !v.Viable || v.Rating != 10 || len(v.Factors) != 2 {
		t.Errorf("Viability = %+v", v)
	}

	v = newTestClassifier(&scriptedBackend{replies: []reply{{err: errors.New("down")}}}).Viability(context.Background(), "flat")
	if v.Viable || v.Rating != 0 {
		t.Errorf("failed viability should be zero, got %+v", v)
	}
}

func TestExtractContactMergesScan(t *testing.T) {
	text := "Private seller, contact jane@example.com or +352 621 123 456"
	b := &scriptedBackend{replies: []reply{{out: `{"email": "Jane@Example.com", "phone": ""}`}}}
	c := newTestClassifier(b).ExtractContact(context.Background(), text)
	if c.Email != "jane@example.com" || c.Phone != "+352621123456" {
		t.Errorf("contact = %+v", c)
	}

	c = newTestClassifier(&scriptedBackend{replies: []reply{{err: errors.New("down")}}}).ExtractContact(context.Background(), text)
	if c.Email != "jane@example.com" {
		t.Errorf("fallback contact = %+v", c)
	}
}

func TestScanContact(t *testing.T) {
	tests := []struct {
		text  string
		email string
		phone string
	}{
		{"Call 621 123 456 today", "", "+352621123456"},
		{"Mail JANE@example.com, $450,000", "jane@example.com", ""},
		{"Tel. 00352 621 123 456", "", "+352621123456"},
		{"Price € 450.000 negotiable", "", ""},
	}
	for _, tt := range tests {
		got := ScanContact(tt.text, "LU")
		if got.Email != tt.email || got.Phone != tt.phone {
			t.Errorf("ScanContact(%q) = %+v; want %s / %s", tt.text, got, tt.email, tt.phone)
		}
	}
}

func TestAgentDetails(t *testing.T) {
	c := newTestClassifier(&scriptedBackend{})
	l := &models.Listing{
		Description: "Modern flat in Strassen. Listed by Century Immo, call 621 123 456",
		Title:       "Modern flat",
		URL:         "https://example.com/1",
	}
	a := c.AgentDetails(l, "agent keywords")
	if a.AgencyName != "Century Immo" {
		t.Errorf("agency = %q", a.AgencyName)
	}
	if a.Location != "Strassen" {
		t.Errorf("location = %q", a.Location)
	}
	if a.Contact != "+352621123456" || a.Title != "Modern flat" || a.Reason != "agent keywords" {
		t.Errorf("details = %+v", a)
	}
}

func TestFallbackChain(t *testing.T) {
	down := &scriptedBackend{replies: []reply{{err: errors.New("down")}}}
	up := &scriptedBackend{replies: []reply{{out: "{}"}}}
	chain := NewFallbackChain(utils.NewLoggerTo(io.Discard), down, up)

	out, err := chain.Complete(context.Background(), "p", "m")
	if err != nil || out != "{}" {
		t.Fatalf("Complete = %q, %v", out, err)
	}
	if down.calls() != 1 || up.calls() != 1 {
		t.Errorf("calls = %d / %d", down.calls(), up.calls())
	}

	_, err = NewFallbackChain(utils.NewLoggerTo(io.Discard), down).Complete(context.Background(), "p", "m")
	if !errors.Is(err, ErrNoBackend) {
		t.Errorf("expected ErrNoBackend, got %v", err)
	}
}
