package render

// Theme holds colors for class graph rendering.
type Theme struct {
	Background string
	NodeFill   string
	NodeBorder string
	TextColor  string

	EdgeCall  string // method to method, or class to class
	EntryEdge string // entry point border

	// Node accents.
	ExternalFill string // classes referenced but not declared in the input
	ExternalText string

	// Cluster styling.
	ClusterBorder string
	ClusterLabel  string
}

// NASA is the NASA/Bauhaus theme: geometric, monochrome, sparse color.
var NASA = Theme{
	Background: "#F5F5F5",
	NodeFill:   "white",
	NodeBorder: "#1A1A1A",
	TextColor:  "#1A1A1A",

	EdgeCall:  "#424242", // dark gray
	EntryEdge: "#0B3D91", // NASA blue

	ExternalFill: "#ECEFF1", // blue-gray 50
	ExternalText: "#9E9E9E",

	ClusterBorder: "#BDBDBD",
	ClusterLabel:  "#757575",
}
