package model

// cropAliases maps regional and alternate commodity names to canonical ids.
var cropAliases = map[string]string{
	"gehu":      "wheat",
	"gehun":     "wheat",
	"dhan":      "rice",
	"paddy":     "rice",
	"chawal":    "rice",
	"kanda":     "onion",
	"pyaz":      "onion",
	"pyaaz":     "onion",
	"aloo":      "potato",
	"batata":    "potato",
	"tamatar":   "tomato",
	"chana":     "gram",
	"chickpea":  "gram",
	"makka":     "maize",
	"makkai":    "maize",
	"corn":      "maize",
	"kapas":     "cotton",
	"soyabean":  "soybean",
	"soya":      "soybean",
	"jowar":     "sorghum",
	"bajra":     "pearl millet",
	"ragi":      "finger millet",
	"ganna":     "sugarcane",
	"arhar":     "pigeon pea",
	"tur":       "pigeon pea",
	"toor":      "pigeon pea",
	"moongfali": "groundnut",
	"peanut":    "groundnut",
	"sarson":    "mustard",
}

// CanonicalCrop normalizes a crop name and resolves known aliases. extra
// takes precedence over the builtin table; both are keyed by normalized name.
func CanonicalCrop(name string, extra map[string]string) string {
	n := NormalizeName(name)
	if v, ok := extra[n]; ok {
		return NormalizeName(v)
	}
	if v, ok := cropAliases[n]; ok {
		return v
	}
	return n
}
