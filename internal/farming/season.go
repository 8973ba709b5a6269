package farming

import (
	"strings"
	"time"
)

const (
	Summer = "summer"
	Autumn = "autumn"
	Winter = "winter"
	Spring = "spring"
)

var seasonOrder = []string{Summer, Autumn, Winter, Spring}

// SeasonalCrops lists what is commonly grown or done in each Southern
// African season, most important first.
var SeasonalCrops = map[string][]string{
	Summer: {"maize", "sorghum", "millet", "groundnuts", "cotton", "soybeans", "sunflower", "tobacco", "vegetables"},
	Autumn: {"winter wheat", "barley", "potatoes", "vegetable harvest", "land preparation"},
	Winter: {"wheat", "barley", "oats", "peas", "leafy greens", "onions", "garlic"},
	Spring: {"maize preparation", "tobacco seedbeds", "cotton preparation", "vegetable planting", "soil preparation"},
}

// Season returns the southern hemisphere season of t.
func Season(t time.Time) string {
	switch m := t.Month(); {
	case m >= time.March && m <= time.May:
		return Autumn
	case m >= time.June && m <= time.August:
		return Winter
	case m >= time.September && m <= time.November:
		return Spring
	default:
		return Summer
	}
}

// SeasonOf returns the first season whose crop list names crop.
func SeasonOf(crop string) (string, bool) {
	crop = strings.ToLower(strings.TrimSpace(crop))
	for _, s := range seasonOrder {
		if inSeason(s, crop) {
			return s, true
		}
	}
	return "", false
}

func inSeason(season, crop string) bool {
	for _, c := range SeasonalCrops[season] {
		if c == crop {
			return true
		}
	}
	return false
}

func topCrops(season string, n int) []string {
	crops := SeasonalCrops[season]
	if len(crops) > n {
		crops = crops[:n]
	}
	return crops
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
