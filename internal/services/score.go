package services

// Axis is one of the four independent typology dimensions.
type Axis string

const (
	AxisEI Axis = "EI"
	AxisSN Axis = "SN"
	AxisFT Axis = "FT"
	AxisJP Axis = "JP"
)

// AnswerSet maps a quiz item id to the recorded magnitude in [1,5].
// Items the respondent has not reached yet are simply absent.
type AnswerSet map[int]int

// TypologyResult holds the raw per-axis sums and the derived 4-letter code.
// The code is fully determined by the four integers; letter order is EI SN FT JP.
type TypologyResult struct {
	EI   int    `json:"ei"`
	SN   int    `json:"sn"`
	FT   int    `json:"ft"`
	JP   int    `json:"jp"`
	Code string `json:"code"`
}

// neutralMagnitude substitutes for any unanswered item.
const neutralMagnitude = 3

// axisThreshold: a raw sum strictly above it picks the first letter of the pair.
const axisThreshold = 24

// ComputeType converts an answer set into a typology result. It is total and
// idempotent: missing items count as the neutral magnitude, and the same
// answers always produce the same result.
//
// The per-axis linear combinations are a compatibility contract with
// previously persisted results; item ids, signs and base offsets must not be
// reordered or simplified.
func ComputeType(answers AnswerSet) TypologyResult {
	a := func(id int) int {
		if v, ok := answers[id]; ok {
			return v
		}
		return neutralMagnitude
	}

	ei := 30 - a(3) - a(7) - a(11) + a(15) - a(19) + a(23) + a(27) - a(31)
	sn := 12 + a(4) + a(8) + a(12) + a(16) + a(20) - a(24) - a(28) + a(32)
	ft := 30 - a(2) + a(6) + a(10) - a(14) - a(18) + a(22) - a(26) - a(30)
	jp := 18 + a(1) + a(5) - a(9) + a(13) - a(17) + a(21) - a(25) + a(29)

	code := pick(ei, 'E', 'I') + pick(sn, 'N', 'S') + pick(ft, 'T', 'F') + pick(jp, 'P', 'J')

	return TypologyResult{EI: ei, SN: sn, FT: ft, JP: jp, Code: code}
}

func pick(raw int, high, low byte) string {
	if raw > axisThreshold {
		return string(high)
	}
	return string(low)
}

// TypeName returns the display name for a 4-letter typology code, or the
// code itself when it is unknown.
func TypeName(code string) string {
	if n, ok := typeNames[code]; ok {
		return n
	}
	return code
}

var typeNames = map[string]string{
	"INTJ": "Стратег",
	"INTP": "Учёный",
	"ENTJ": "Командир",
	"ENTP": "Полемист",
	"INFJ": "Активист",
	"INFP": "Посредник",
	"ENFJ": "Тренер",
	"ENFP": "Борец",
	"ISTJ": "Администратор",
	"ISFJ": "Защитник",
	"ESTJ": "Менеджер",
	"ESFJ": "Консул",
	"ISTP": "Виртуоз",
	"ISFP": "Артист",
	"ESTP": "Делец",
	"ESFP": "Развлекатель",
}
