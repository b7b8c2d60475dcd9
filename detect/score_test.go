package detect

import (
	"math"
	"testing"
)

func TestDefaultWeightsSumToOne(t *testing.T) {
	if s := DefaultWeights().Sum(); math.Abs(s-1.0) > 1e-9 {
		t.Errorf("weight sum = %v, want 1.0", s)
	}
}

func TestFieldCountScore(t *testing.T) {
	tests := []struct {
		n    int
		want float64
	}{
		{0, 0}, {2, 0}, {3, 0.4}, {5, 0.7}, {10, 1.0}, {19, 1.0}, {35, 0.8},
	}
	for _, tt := range tests {
		if got := fieldCountScore(tt.n); got != tt.want {
			t.Errorf("fieldCountScore(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestRequiredRatioScore(t *testing.T) {
	mk := func(req, opt int) []Field {
		var out []Field
		for range req {
			out = append(out, Field{Required: true})
		}
		for range opt {
			out = append(out, Field{})
		}
		return out
	}

	if got := requiredRatioScore(mk(5, 5)); got != 1.0 {
		t.Errorf("50%% required = %v, want 1.0", got)
	}
	if got := requiredRatioScore(mk(0, 10)); got != 0.2 {
		t.Errorf("0%% required = %v, want 0.2 floor", got)
	}
	if got := requiredRatioScore(mk(10, 0)); math.Abs(got-0.2) > 1e-9 {
		t.Errorf("100%% required = %v, want 0.2 floor", got)
	}
	if got := requiredRatioScore(nil); got != 0 {
		t.Errorf("no fields = %v, want 0", got)
	}
}

func TestPlatformMatch(t *testing.T) {
	s := NewScorer(DefaultWeights(), DefaultKeywords())

	tests := []struct {
		platform Platform
		url      string
		title    string
		want     float64
	}{
		{PlatformGreenhouse, "https://boards.greenhouse.io/acme/jobs/123", "", 1.0},
		{PlatformGreenhouse, "https://boards.greenhouse.io/acme", "", 0.7},
		{PlatformGreenhouse, "https://example.com", "", 0},
		{PlatformLever, "https://jobs.lever.co/acme/uuid/apply", "", 1.0},
		{PlatformWorkday, "https://acme.wd1.myworkdayjobs.com/careers/job/NYC/Engineer", "", 1.0},
		{PlatformGeneric, "https://example.com/careers/apply", "", 0.6},
		{PlatformGeneric, "https://example.com/about", "Jobs at Example", 0.4},
		{PlatformGeneric, "https://example.com/about", "About Us", 0.2},
	}
	for _, tt := range tests {
		got := s.platformMatch(tt.platform, PageContext{URL: tt.url, Title: tt.title})
		if got != tt.want {
			t.Errorf("platformMatch(%s, %s) = %v, want %v", tt.platform, tt.url, got, tt.want)
		}
	}
}

func TestLabelQuality(t *testing.T) {
	fields := []Field{
		{Label: UnknownLabel}, // 0
		{Label: "Full Name"},  // 1.0
		{Label: "Email"},      // 0.6
		{Label: "X"},          // 0.2
	}
	got := labelQuality(fields)
	want := (0.0 + 1.0 + 0.6 + 0.2) / 4
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("labelQuality = %v, want %v", got, want)
	}
}

func TestTypeDiversity(t *testing.T) {
	fields := []Field{
		{Type: FieldText}, {Type: FieldText}, {Type: FieldEmail},
	}
	if got := typeDiversity(fields); got != 0.4 {
		t.Errorf("2 distinct types = %v, want 0.4", got)
	}
	many := []Field{
		{Type: FieldText}, {Type: FieldEmail}, {Type: FieldPhone},
		{Type: FieldFile}, {Type: FieldSelect}, {Type: FieldTextarea},
	}
	if got := typeDiversity(many); got != 1.0 {
		t.Errorf("6 distinct types = %v, want 1.0", got)
	}
}

func TestStructuralQuality(t *testing.T) {
	doc := parseDoc(t, `<body><form>
<div class="form-group"><label for="a">A</label><input id="a" type="text" required></div>
<div class="form-group"><label for="b">B</label><input id="b" type="text"></div>
<button type="submit">Apply</button>
</form></body>`)
	form := doc.Query("form")
	got := structuralQuality(form)
	// form(0.3) + form-group(0.15) + label ratio 1.0(0.2) + submit(0.2) + required(0.15)
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("structuralQuality = %v, want 1.0", got)
	}

	bare := parseDoc(t, `<body><div id="d"><input type="text"><input type="text"></div></body>`)
	if got := structuralQuality(bare.Query("#d")); got != 0 {
		t.Errorf("bare div = %v, want 0", got)
	}
}

func TestScoreIsDeterministicAndClamped(t *testing.T) {
	doc := parseDoc(t, `<body><form>
<label for="a">Full Name</label><input id="a" type="text" required>
<label for="b">Email Address</label><input id="b" type="email" required>
<label for="c">Resume</label><input id="c" type="file">
<button type="submit">Submit application</button>
</form></body>`)
	form := doc.Query("form")
	fields := ClassifyFields(NewClassifier(nil), form)
	fs := make([]Field, len(fields))
	for i, p := range fields {
		fs[i] = p.Field
	}

	s := NewScorer(DefaultWeights(), DefaultKeywords())
	page := PageContext{URL: "https://boards.greenhouse.io/acme/jobs/1", Title: "Engineer"}

	first := s.Score(form, fs, PlatformGreenhouse, page)
	for range 5 {
		if again := s.Score(form, fs, PlatformGreenhouse, page); again != first {
			t.Fatalf("score not deterministic: %v vs %v", again, first)
		}
	}
	if first < 0 || first > 1 {
		t.Errorf("score %v outside [0,1]", first)
	}
	if first < 0.6 {
		t.Errorf("well-formed greenhouse form scored %v, expected above threshold", first)
	}
}
