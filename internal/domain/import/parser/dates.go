package parser

import "strings"

// defaultLayout matches the most common US bank export date format.
const defaultLayout = "01/02/2006"

// normalizeLayout prepares a template's date format for time.Parse. Formats
// persisted by earlier CoinPurse deployments use strptime directives, so those
// are translated to a Go reference layout. Accidental JSON/string wrapping like
// "\"%Y-%m-%d\"" is stripped first to keep parsing stable with slightly
// malformed template data.
func normalizeLayout(format string) string {
	format = strings.TrimSpace(format)
	format = strings.Trim(format, `"'`)
	if format == "" {
		return defaultLayout
	}
	if strings.Contains(format, "%") {
		return translateStrptime(format)
	}
	return format
}

var strptimeReplacer = strings.NewReplacer(
	"%Y", "2006",
	"%y", "06",
	"%m", "01",
	"%-m", "1",
	"%d", "02",
	"%-d", "2",
	"%H", "15",
	"%I", "03",
	"%M", "04",
	"%S", "05",
	"%p", "PM",
	"%b", "Jan",
	"%B", "January",
	"%a", "Mon",
	"%A", "Monday",
)

func translateStrptime(format string) string {
	return strptimeReplacer.Replace(format)
}
