// Package enricher derives catalogue labels from free-text product names.
//
// Classification is a keyword heuristic over the lower-cased name: two
// independent ordered rule lists, first match wins in each, with a fixed
// fallback when nothing matches. It misclassifies ambiguous names and that
// is accepted.
package enricher

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	CategoryShoes       = "Chaussures"
	CategoryClothing    = "Vêtements"
	CategoryAccessories = "Accessoires"
	CategoryUnknown     = "Non déterminée"

	SubCategorySportShoes = "Chaussures de sport"
	SubCategoryTShirt     = "T-shirt"
	SubCategoryJacket     = "Veste"
	SubCategoryBottoms    = "Bas"
	SubCategoryMisc       = "Divers"
	SubCategoryUnknown    = "Non déterminée"

	PracticeSki     = "Ski"
	PracticeHiking  = "Randonnée"
	PracticeFitness = "Fitness"
	PracticeRunning = "Course à pied"
	PracticeRacket  = "Sports de raquette"
	PracticeCycling = "Cyclisme"
	PracticeRiding  = "Equitation"
	PracticeOther   = "Autres"
)

// Labels is the classification of one product name.
type Labels struct {
	Category    string
	SubCategory string
	Practice    string
}

type categoryRule struct {
	keywords    []string
	category    string
	subCategory string
}

type practiceRule struct {
	keywords []string
	practice string
}

// Order matters: the first rule with any matching keyword wins.
var categoryRules = []categoryRule{
	{[]string{"chaussure", "shoes", "boots"}, CategoryShoes, SubCategorySportShoes},
	{[]string{"t-shirt", "tee shirt", "sweatshirt", "fleece", "top", "sleeve", "base layer", "shirt"}, CategoryClothing, SubCategoryTShirt},
	{[]string{"veste", "jacket", "cap", "hoodie", "softshell", "gilet", "vest", "poncho"}, CategoryClothing, SubCategoryJacket},
	{[]string{"pantalon", "short", "pants", "tights", "trousers", "leggings", "joggers", "jogging"}, CategoryClothing, SubCategoryBottoms},
	{[]string{"gloves", "hat", "boxers", "bra", "backpack", "socks", "scarf", "sunglasses"}, CategoryAccessories, SubCategoryMisc},
}

var practiceRules = []practiceRule{
	{[]string{"ski", "snowboard"}, PracticeSki},
	{[]string{"randonnée", "hiking", "mountain", "trekking", "trek"}, PracticeHiking},
	{[]string{"fitness", "gym"}, PracticeFitness},
	{[]string{"running", "course"}, PracticeRunning},
	{[]string{"tennis"}, PracticeRacket},
	{[]string{"cycling"}, PracticeCycling},
	{[]string{"horse"}, PracticeRiding},
}

// Classify labels a product name. It never fails: unmatched names get the
// fallback labels.
func Classify(name string) Labels {
	n := norm.NFC.String(strings.ToLower(name))
	l := Labels{
		Category:    CategoryUnknown,
		SubCategory: SubCategoryUnknown,
		Practice:    PracticeOther,
	}
	for _, r := range categoryRules {
		if containsAny(n, r.keywords) {
			l.Category, l.SubCategory = r.category, r.subCategory
			break
		}
	}
	for _, r := range practiceRules {
		if containsAny(n, r.keywords) {
			l.Practice = r.practice
			break
		}
	}
	return l
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
