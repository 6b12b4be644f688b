package ingest

// DefaultSources is the built-in F1 news and reference corpus, used
// when no sources are configured.
var DefaultSources = []string{
	"https://en.wikipedia.org/wiki/Formula_One",
	"https://www.formula1.com/en/latest",
	"https://www.skysports.com/f1",
	"https://www.bbc.com/sport/formula1",
	"https://www.espn.com/f1/",
	"https://www.planetf1.com/",
	"https://www.motorsport.com/formula1/",
	"https://www.autosport.com/f1/",
	"https://www.racefans.net/",
	"https://racer.com/formula-1-schedule/",
	"https://www.crash.net/motorsport/formula-1",
	"https://racingnews365.com/formula-1-calendar-2025",
	"https://racingnews365.com/formula-1-standings-2025",
	"https://racingnews365.com/",
	"https://www.autosport.com/f1/driver-ratings/",
	"https://www.autosport.com/f1/schedule/2025/",
	"https://www.autosport.com/f1/standings/2025/",
	"https://www.newsnow.com/us/Sports/F1",
}
