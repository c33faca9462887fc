package render

// Theme holds colors for CFG rendering.
type Theme struct {
	Background string
	NodeFill   string
	NodeBorder string
	TextColor  string

	// Edge colors by branch kind.
	EdgeTaken       string // conditional branch taken
	EdgeFallthrough string // conditional branch not taken
	EdgeDirect      string // unconditional flow

	// Node accents.
	EntryBorder string // function entry block
	TermFill    string // returning / leaving blocks
	CoveredFill string // blocks executed during the run
}

// NASA is the NASA/Bauhaus theme: geometric, monochrome, sparse color.
// Executed blocks keep the green fill the S2E web front end always used.
var NASA = Theme{
	Background: "#F5F5F5",
	NodeFill:   "white",
	NodeBorder: "#1A1A1A",
	TextColor:  "#1A1A1A",

	EdgeTaken:       "#0B3D91", // NASA blue
	EdgeFallthrough: "#FC3D21", // NASA red
	EdgeDirect:      "#424242", // dark gray

	EntryBorder: "#0B3D91",
	TermFill:    "#ECEFF1", // blue-gray 50
	CoveredFill: "darkolivegreen2",
}
