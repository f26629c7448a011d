package domain

import "math"

// ImpactTally - распределение оценок по голосам элемента.
type ImpactTally struct {
	Total         int `json:"total"`
	StronglyAgree int `json:"strongly_agree"`
	Agree         int `json:"agree"`
	Disagree      int `json:"disagree"`
}

func TallyImpact(voters []Voter) ImpactTally {
	t := ImpactTally{Total: len(voters)}
	for _, v := range voters {
		switch v.Impact {
		case ImpactStronglyAgree:
			t.StronglyAgree++
		case ImpactAgree:
			t.Agree++
		case ImpactDisagree:
			t.Disagree++
		}
	}
	return t
}

// Percent возвращает округлённую долю оценки в процентах.
func (t ImpactTally) Percent(i Impact) int {
	if t.Total == 0 {
		return 0
	}
	var n int
	switch i {
	case ImpactStronglyAgree:
		n = t.StronglyAgree
	case ImpactAgree:
		n = t.Agree
	case ImpactDisagree:
		n = t.Disagree
	}
	return int(math.Round(float64(n) / float64(t.Total) * 100))
}
