package services

import "testing"

func TestComputeTypeDefaultCode(t *testing.T) {
	// all items unanswered: every magnitude defaults to 3
	res := ComputeType(AnswerSet{})
	if res.Code != "ISFJ" {
		t.Fatalf("default code = %q, want ISFJ", res.Code)
	}
	if res.EI != 24 || res.SN != 24 || res.FT != 24 || res.JP != 24 {
		t.Fatalf("default raw sums = %d/%d/%d/%d, want 24 each", res.EI, res.SN, res.FT, res.JP)
	}
}

func TestComputeTypeDeterministic(t *testing.T) {
	answers := AnswerSet{}
	for _, it := range QuizItems {
		answers[it.ID] = (it.ID % 5) + 1
	}
	first := ComputeType(answers)
	second := ComputeType(answers)
	if first != second {
		t.Fatalf("same answers gave %+v then %+v", first, second)
	}
}

func TestComputeTypeCodeAlphabet(t *testing.T) {
	sets := []AnswerSet{
		{},
		{3: 1, 7: 1, 11: 1, 31: 1},     // push EI up
		{3: 5, 7: 5, 11: 5, 31: 5},     // push EI down
		{4: 5, 8: 5, 12: 5, 16: 5},     // push SN up
		{24: 5, 28: 5},                 // push SN down
		{2: 1, 6: 5, 10: 5},            // push FT up
		{1: 5, 5: 5, 13: 5, 21: 5},     // push JP up
		{9: 5, 17: 5, 25: 5, 29: 1},    // push JP down
		{1: 1, 2: 2, 3: 3, 4: 4, 5: 5}, // mixed
	}
	for _, answers := range sets {
		res := ComputeType(answers)
		if len(res.Code) != 4 {
			t.Fatalf("code %q is not 4 letters", res.Code)
		}
		pairs := []string{"EI", "NS", "TF", "PJ"}
		for i, pair := range pairs {
			if res.Code[i] != pair[0] && res.Code[i] != pair[1] {
				t.Fatalf("code %q: position %d not drawn from %q", res.Code, i, pair)
			}
		}
	}
}

func TestComputeTypeAxisExtremes(t *testing.T) {
	// all magnitudes at 5 exercise every sign in the formulas
	answers := AnswerSet{}
	for _, it := range QuizItems {
		answers[it.ID] = 5
	}
	res := ComputeType(answers)
	// EI: 30 + (-5-5-5+5-5+5+5-5) = 20 -> I
	// SN: 12 + (5+5+5+5+5-5-5+5) = 32 -> N
	// FT: 30 + (-5+5+5-5-5+5-5-5) = 20 -> F
	// JP: 18 + (5+5-5+5-5+5-5+5) = 28 -> P
	if res.EI != 20 || res.SN != 32 || res.FT != 20 || res.JP != 28 {
		t.Fatalf("raw sums = %d/%d/%d/%d, want 20/32/20/28", res.EI, res.SN, res.FT, res.JP)
	}
	if res.Code != "INFP" {
		t.Fatalf("code = %q, want INFP", res.Code)
	}
}

func TestQuizItemsAxisLayout(t *testing.T) {
	if len(QuizItems) != 32 {
		t.Fatalf("expected 32 items, got %d", len(QuizItems))
	}
	byMod := map[int]Axis{1: AxisJP, 2: AxisFT, 3: AxisEI, 0: AxisSN}
	for i, it := range QuizItems {
		if it.ID != i+1 {
			t.Fatalf("item %d has id %d", i, it.ID)
		}
		if want := byMod[it.ID%4]; it.Axis != want {
			t.Fatalf("item %d axis %s, want %s", it.ID, it.Axis, want)
		}
		if it.PromptA == "" || it.PromptB == "" {
			t.Fatalf("item %d has empty prompt", it.ID)
		}
	}
}

func TestTypeName(t *testing.T) {
	if TypeName("ISFJ") == "ISFJ" {
		t.Fatalf("ISFJ should have a display name")
	}
	if got := TypeName("XXXX"); got != "XXXX" {
		t.Fatalf("unknown code should echo, got %q", got)
	}
}
