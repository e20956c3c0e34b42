package slot

// CityAliases maps short forms and colloquial spellings to canonical city
// or area names. The outlet engine shares this table so both sides agree
// on canonical forms.
var CityAliases = map[string]string{
	"kl":             "kuala lumpur",
	"kuala lumpur":   "kuala lumpur",
	"pj":             "petaling jaya",
	"petaling jaya":  "petaling jaya",
	"petaling":       "petaling jaya",
	"sj":             "subang jaya",
	"subang":         "subang jaya",
	"subang jaya":    "subang jaya",
	"damansara":      "damansara",
	"cheras":         "cheras",
	"bangsar":        "bangsar",
	"ss2":            "petaling jaya",
	"shah alam":      "shah alam",
	"puchong":        "puchong",
	"ampang":         "ampang",
	"selangor":       "selangor",
	"mont kiara":     "mont kiara",
	"bukit bintang":  "bukit bintang",
	"kepong":         "kepong",
	"setapak":        "setapak",
	"klang":          "klang",
	"putrajaya":      "putrajaya",
	"cyberjaya":      "cyberjaya",
}

// CanonicalCity resolves an alias; unknown locations return ok == false and
// pass through as keywords instead.
func CanonicalCity(s string) (string, bool) {
	c, ok := CityAliases[s]
	return c, ok
}

// Landmarks are mall names that show up in outlet addresses.
var Landmarks = []string{
	"klcc",
	"mid valley",
	"1 utama",
	"one utama",
	"sunway pyramid",
	"pavilion",
	"the gardens",
	"paradigm mall",
	"ioi city mall",
	"mytown",
	"nu sentral",
}

// Collections are the catalogue's named drinkware lines.
var Collections = []string{
	"all-day",
	"og",
	"frozee",
	"mentai",
	"corak",
	"kelip",
}
