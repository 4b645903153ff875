package leaderboard

var mapAliases = map[string]string{
	"bigmap":         "Customs",
	"factory4_day":   "Factory",
	"factory4_night": "Night Factory",
	"interchange":    "Interchange",
	"laboratory":     "Labs",
	"RezervBase":     "Reserve",
	"shoreline":      "Shoreline",
	"woods":          "Woods",
	"lighthouse":     "Lighthouse",
	"TarkovStreets":  "Streets of Tarkov",
	"Sandbox":        "Ground Zero - Low",
	"Sandbox_high":   "Ground Zero - High",
	"unknown":        "Labyrinth",
}

// PrettyMap returns the display name for a raw map id, or raw when unknown.
func PrettyMap(raw string) string {
	if v, ok := mapAliases[raw]; ok {
		return v
	}
	return raw
}
