package wikipedia

// properties names the Wikidata properties copied into Record.Wikidata.
// Claims on any other property are ignored.
var properties = map[string]string{
	"P17":   "country",
	"P18":   "image",
	"P19":   "birthplace",
	"P20":   "deathplace",
	"P21":   "gender",
	"P27":   "citizenship",
	"P31":   "instance",
	"P50":   "author",
	"P57":   "director",
	"P86":   "composer",
	"P106":  "occupation",
	"P136":  "genre",
	"P159":  "headquarters",
	"P161":  "cast",
	"P170":  "creator",
	"P279":  "subclass",
	"P345":  "IMDB",
	"P361":  "part of",
	"P495":  "origin",
	"P569":  "birth",
	"P570":  "death",
	"P571":  "inception",
	"P577":  "publication",
	"P625":  "coordinates",
	"P646":  "Freebase",
	"P856":  "website",
	"P1441": "work",
	"P1476": "title",
	"P2002": "Twitter",
}
