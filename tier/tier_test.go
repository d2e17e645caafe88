package tier

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    Tier
		wantErr bool
	}{
		{"starter", Starter, false},
		{"pro", Pro, false},
		{"teams", Teams, false},
		{"enterprise", Enterprise, false},
		{"", "", true},
		{"gold", "", true},
		{"Pro", "", true},
	}

	for _, tt := range tests {
		got, err := Parse(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Parse(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q): got %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestPriced(t *testing.T) {
	for _, tr := range []Tier{Starter, Pro, Teams} {
		if !tr.Priced() {
			t.Errorf("%s should resolve through the shared schedule", tr)
		}
	}
	if Enterprise.Priced() {
		t.Error("enterprise must resolve through custom terms, not the schedule")
	}
	if Tier("gold").Priced() {
		t.Error("unknown tier must not be priced")
	}
}

func TestDefaultSchedule(t *testing.T) {
	sched := DefaultSchedule("usd")

	if _, ok := sched[Enterprise]; ok {
		t.Error("default schedule must not contain enterprise")
	}
	for _, tr := range []Tier{Starter, Pro, Teams} {
		cfg, ok := sched[tr]
		if !ok {
			t.Fatalf("default schedule missing %s", tr)
		}
		if !cfg.Price.IsPositive() || cfg.Credits <= 0 {
			t.Errorf("%s: zero price or credits in default schedule", tr)
		}
		if cfg.Price.Currency != "usd" {
			t.Errorf("%s: currency %q, want usd", tr, cfg.Price.Currency)
		}
	}
}
