package parser

// funcCallParser handles the do()/finish() call dialects. The two
// variants differ only in their declared geometry parameter name; any
// geometry found under the other name is remapped to the declared one.
type funcCallParser struct {
	name    string
	geomKey string
	scale   int
}

// NewGLMParser returns the parser for the do()/finish() dialect that
// names its geometry parameter "coordinate" on a 0..1000 grid.
func NewGLMParser() ActionParser {
	return &funcCallParser{name: "glm", geomKey: "coordinate", scale: 1000}
}

func (p *funcCallParser) Name() string { return p.name }

func (p *funcCallParser) CoordinateScale() int { return p.scale }

func (p *funcCallParser) Parse(raw string) (Action, error) {
	parsed, err := p.ParseWithThinking(raw)
	if err != nil {
		return Action{}, err
	}
	return parsed.Action, nil
}

func (p *funcCallParser) ParseWithThinking(raw string) (ParsedResponse, error) {
	thinking, call, err := extractCall(p.name, raw)
	if err != nil {
		return ParsedResponse{}, err
	}

	var action Action
	switch call.name {
	case "finish":
		action, err = p.buildFinish(call)
	default:
		action, err = p.buildDo(call)
	}
	if err != nil {
		return ParsedResponse{}, err
	}
	return ParsedResponse{Thinking: thinking, Action: action}, nil
}

func (p *funcCallParser) buildFinish(call callExpr) (Action, error) {
	action := Action{Meta: MetaFinish}
	if v, ok := call.args["message"]; ok {
		if v.kind != argString {
			return Action{}, newParseError(p.name, "finish message must be a string")
		}
		action.Message = v.str
	}
	return action, nil
}

func (p *funcCallParser) buildDo(call callExpr) (Action, error) {
	action := Action{Meta: MetaDo}

	name, ok := call.args["action"]
	if !ok || name.kind != argString || name.str == "" {
		return Action{}, newParseError(p.name, "do call missing action name")
	}
	action.Name = name.str

	// Geometry passes through on the dialect's own grid; normalization to
	// the unit square happens at dispatch time.
	for _, key := range []string{"coordinate", "element"} {
		v, ok := call.args[key]
		if !ok {
			continue
		}
		if v.kind != argList || (len(v.list) != 2 && len(v.list) != 4) {
			return Action{}, newParseError(p.name, "%s must be a list of 2 or 4 numbers", key)
		}
		p.setGeometry(&action, v.list)
	}
	for _, key := range []string{"coordinate2", "element2", "end"} {
		if v, ok := call.args[key]; ok {
			if v.kind != argList || len(v.list) != 2 {
				return Action{}, newParseError(p.name, "%s must be a list of 2 numbers", key)
			}
			action.End = v.list
		}
	}

	if v, ok := call.args["text"]; ok && v.kind == argString {
		action.Text = v.str
	}
	if v, ok := call.args["app"]; ok && v.kind == argString {
		action.App = v.str
	}
	if v, ok := call.args["message"]; ok && v.kind == argString {
		action.Message = v.str
	}
	return action, nil
}

func (p *funcCallParser) setGeometry(action *Action, list []float64) {
	if p.geomKey == "element" {
		action.Element = list
		return
	}
	action.Coordinate = list
}
