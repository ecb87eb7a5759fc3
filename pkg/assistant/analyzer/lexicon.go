package analyzer

import (
	"sort"
	"strings"
)

// symptomLexicon maps a canonical symptom to English and Vietnamese surface forms.
var symptomLexicon = map[string][]string{
	"yellowing leaves": {"yellow", "chlorosis", "vàng lá", "lá vàng", "úa vàng"},
	"brown spots":      {"brown spot", "leaf spot", "đốm nâu", "đốm lá"},
	"wilting":          {"wilt", "droop", "héo", "rũ"},
	"root rot":         {"root rot", "mushy root", "thối rễ", "úng rễ"},
	"pests":            {"pest", "aphid", "mealybug", "spider mite", "scale insect", "rệp", "sâu bệnh", "sâu ăn", "nhện đỏ"},
	"leaf drop":        {"leaf drop", "dropping leaves", "leaves falling", "rụng lá"},
	"mold":             {"mold", "mould", "mildew", "fungus", "nấm", "mốc"},
	"dry leaf tips":    {"crispy", "brown tips", "dry tips", "khô lá", "cháy lá", "khô đầu lá"},
	"stunted growth":   {"stunted", "not growing", "chậm lớn", "còi cọc"},
}

var healthHints = []string{"sick", "dying", "disease", "problem", "wrong with", "bệnh", "chết", "sao vậy"}

// extractSymptoms returns canonical symptoms found in text, sorted.
func extractSymptoms(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for symptom, forms := range symptomLexicon {
		for _, f := range forms {
			if strings.Contains(lower, f) {
				found = append(found, symptom)
				break
			}
		}
	}
	sort.Strings(found)
	return found
}

func soundsUnhealthy(text string) bool {
	lower := strings.ToLower(text)
	for _, h := range healthHints {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return false
}
