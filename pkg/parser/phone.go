package parser

// NewPhoneParser returns the parser for the do()/finish() dialect that
// names its geometry parameter "element" on a 0..1000 grid.
func NewPhoneParser() ActionParser {
	return &funcCallParser{name: "phone", geomKey: "element", scale: 1000}
}
