package match

// stateNeighbors is the curated adjacency table used by the neighbor-state
// tier. Slice order is the probing order. States absent from the table have no
// neighbors and the tier is skipped for them.
var stateNeighbors = map[string][]string{
	"AL": {"GA", "FL", "TN", "MS"},
	"AZ": {"CA", "NV", "NM", "UT"},
	"AR": {"TX", "OK", "TN", "LA"},
	"CA": {"OR", "NV", "AZ"},
	"CO": {"NM", "UT", "KS", "NE"},
	"CT": {"NY", "MA", "RI"},
	"FL": {"GA", "AL"},
	"GA": {"FL", "SC", "NC", "TN"},
	"IL": {"WI", "IN", "MO", "IA"},
	"IN": {"IL", "OH", "MI", "KY"},
	"KY": {"TN", "OH", "IN", "WV"},
	"LA": {"TX", "MS", "AR"},
	"MA": {"NY", "CT", "NH", "RI"},
	"MI": {"OH", "IN", "WI"},
	"MS": {"LA", "AL", "TN", "AR"},
	"NV": {"CA", "AZ", "OR", "UT"},
	"NJ": {"NY", "PA", "DE"},
	"NM": {"TX", "AZ", "CO", "OK"},
	"NY": {"NJ", "PA", "CT", "MA"},
	"NC": {"SC", "VA", "GA", "TN"},
	"OH": {"PA", "MI", "IN", "KY"},
	"OK": {"TX", "KS", "AR", "NM"},
	"OR": {"WA", "CA", "ID", "NV"},
	"PA": {"NY", "NJ", "OH", "MD"},
	"SC": {"NC", "GA"},
	"TN": {"GA", "NC", "KY", "AL"},
	"TX": {"NM", "OK", "AR", "LA"},
	"VA": {"NC", "MD", "WV", "TN"},
	"WA": {"OR", "ID"},
	"WI": {"IL", "MN", "MI", "IA"},
}

// Neighbors returns the bordering states for the given code in probing order.
// The result is nil for states outside the curated table.
func Neighbors(state string) []string {
	return stateNeighbors[state]
}
