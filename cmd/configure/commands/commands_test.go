package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/benvon/hostel-market/internal/models"
	"github.com/google/uuid"
)

func TestNormalizeRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rate    string
		want    string
		wantErr bool
	}{
		{name: "per second", rate: "5-S", want: "5-S"},
		{name: "lowercase and spaces", rate: " 100-m ", want: "100-M"},
		{name: "empty", rate: "", wantErr: true},
		{name: "unknown period", rate: "5-X", wantErr: true},
		{name: "not a number", rate: "many-S", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := normalizeRate(tt.rate)
			if (err != nil) != tt.wantErr {
				t.Fatalf("normalizeRate(%q) error = %v, wantErr %v", tt.rate, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("normalizeRate(%q) = %q, want %q", tt.rate, got, tt.want)
			}
		})
	}
}

func TestCorsConfigFromFlags(t *testing.T) {
	t.Parallel()

	c, err := corsConfigFromFlags(" https://a.example , http://b.example,", true, 600)
	if err != nil {
		t.Fatalf("corsConfigFromFlags() error = %v", err)
	}
	if c.AllowedOrigins != "https://a.example,http://b.example" || !c.AllowCredentials || c.MaxAge != 600 {
		t.Errorf("Unexpected config: %+v", c)
	}

	for _, bad := range []string{"", " , ", "ftp://a.example", "a.example"} {
		if _, err := corsConfigFromFlags(bad, true, 600); err == nil {
			t.Errorf("Expected error for origins %q", bad)
		}
	}
	if _, err := corsConfigFromFlags("*", false, -1); err == nil {
		t.Error("Expected error for negative max-age")
	}
}

func TestParseIDFlag(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	got, err := parseIDFlag("--user", " "+id.String()+" ")
	if err != nil || got != id {
		t.Errorf("parseIDFlag() = %v, %v; want %v", got, err, id)
	}
	if _, err := parseIDFlag("--user", ""); err == nil || !strings.Contains(err.Error(), "--user is required") {
		t.Errorf("Expected required error, got %v", err)
	}
	if _, err := parseIDFlag("--product", "abc"); err == nil {
		t.Error("Expected error for invalid uuid")
	}
}

func TestWriteScored(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := writeScored(&buf, nil); err != nil {
		t.Fatalf("writeScored() error = %v", err)
	}
	if !strings.Contains(buf.String(), "No results") {
		t.Errorf("Expected empty marker, got %q", buf.String())
	}

	buf.Reset()
	results := []models.ScoredProduct{
		{Product: models.Product{ID: uuid.New(), Title: "Desk lamp"}, Score: 5.5, Reasons: []string{"category_match", "popular"}},
	}
	if err := writeScored(&buf, results); err != nil {
		t.Fatalf("writeScored() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"RANK", "5.50", "Desk lamp", "category_match,popular"} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintRatelimit_Fallback(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printRatelimit(&buf, nil, "5-S")
	if !strings.Contains(buf.String(), "not set") || !strings.Contains(buf.String(), "5-S") {
		t.Errorf("Unexpected output: %q", buf.String())
	}
}
