package parser

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"
)

const maiScale = 999

var (
	maiThinkingRe = regexp.MustCompile(`(?s)<thinking>(.*?)</thinking>`)
	maiToolCallRe = regexp.MustCompile(`(?s)<tool_call>(.*?)</tool_call>`)
)

// maiParser handles the XML-tagged JSON tool-call dialect. Raw
// coordinates arrive on a 0..999 grid (or pre-normalized in the unit
// square); output geometry is re-expressed as "element" on the common
// 0..1000 grid.
type maiParser struct{}

// NewMAIParser returns the parser for the tool-call dialect.
func NewMAIParser() ActionParser {
	return &maiParser{}
}

func (p *maiParser) Name() string { return "mai" }

func (p *maiParser) CoordinateScale() int { return maiScale }

func (p *maiParser) Parse(raw string) (Action, error) {
	parsed, err := p.ParseWithThinking(raw)
	if err != nil {
		return Action{}, err
	}
	return parsed.Action, nil
}

func (p *maiParser) ParseWithThinking(raw string) (ParsedResponse, error) {
	action, err := p.parseToolCall(raw)
	if err != nil {
		return ParsedResponse{}, err
	}
	return ParsedResponse{Thinking: p.extractThinking(raw), Action: action}, nil
}

// extractThinking handles both tag styles this model family emits: a
// paired <thinking> block, or reasoning terminated by a bare closing
// </think> tag.
func (p *maiParser) extractThinking(raw string) string {
	if m := maiThinkingRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	if idx := strings.Index(raw, "</think>"); idx >= 0 {
		head := raw[:idx]
		head = strings.TrimPrefix(strings.TrimLeft(head, " \n\t"), "<think>")
		return strings.TrimSpace(head)
	}
	return ""
}

type maiToolCall struct {
	Name      string  `json:"name"`
	Arguments maiArgs `json:"arguments"`
}

type maiArgs struct {
	Action      string    `json:"action"`
	Coordinate  []float64 `json:"coordinate"`
	Coordinate2 []float64 `json:"coordinate2"`
	Text        string    `json:"text"`
	Status      string    `json:"status"`
	Button      string    `json:"button"`
	App         string    `json:"app"`
}

func (p *maiParser) parseToolCall(raw string) (Action, error) {
	m := maiToolCallRe.FindStringSubmatch(raw)
	if m == nil {
		return Action{}, newParseError("mai", "no <tool_call> block found")
	}

	var call maiToolCall
	if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &call); err != nil {
		return Action{}, newParseError("mai", "invalid tool call json: %v", err)
	}
	if call.Arguments.Action == "" {
		return Action{}, newParseError("mai", "tool call missing action")
	}

	args := call.Arguments
	switch args.Action {
	case "terminate":
		// Termination status is advisory; the task is over either way.
		return Action{Meta: MetaFinish, Message: "Task completed"}, nil

	case "click", "left_click", "tap":
		return p.pointAction("Tap", args.Coordinate, nil)

	case "long_press":
		return p.pointAction("LongPress", args.Coordinate, nil)

	case "swipe", "drag":
		return p.pointAction("Swipe", args.Coordinate, args.Coordinate2)

	case "type", "input_text":
		return Action{Meta: MetaDo, Name: "Type", Text: args.Text}, nil

	case "key", "system_button":
		if strings.EqualFold(args.Button, "back") {
			return Action{Meta: MetaDo, Name: "Back"}, nil
		}
		return Action{Meta: MetaDo, Name: "PressKey", Text: args.Button}, nil

	case "open", "open_app":
		return Action{Meta: MetaDo, Name: "Launch", App: args.App}, nil

	case "wait":
		return Action{Meta: MetaDo, Name: "Wait"}, nil

	default:
		return Action{}, newParseError("mai", "unsupported action %q", args.Action)
	}
}

func (p *maiParser) pointAction(name string, coord, end []float64) (Action, error) {
	element, err := p.normalize(coord)
	if err != nil {
		return Action{}, err
	}
	action := Action{Meta: MetaDo, Name: name, Element: element}
	if len(end) > 0 {
		endEl, err := p.normalize(end)
		if err != nil {
			return Action{}, err
		}
		action.End = endEl
	}
	return action, nil
}

// normalize converts raw geometry to a point on the common 0..1000 output
// grid. A 4-value bounding box collapses to its midpoint per axis.
// Values already inside the unit square are taken as normalized; anything
// larger is divided by the 999 grid. Results clamp to the unit square
// before re-scaling.
func (p *maiParser) normalize(coord []float64) ([]float64, error) {
	var x, y float64
	switch len(coord) {
	case 2:
		x, y = coord[0], coord[1]
	case 4:
		x = (coord[0] + coord[2]) / 2
		y = (coord[1] + coord[3]) / 2
	default:
		return nil, newParseError("mai", "coordinate must have 2 or 4 values, got %d", len(coord))
	}

	if x > 1 || y > 1 {
		x /= maiScale
		y /= maiScale
	}
	x = clampUnit(x)
	y = clampUnit(y)

	return []float64{math.Round(x * outputScale), math.Round(y * outputScale)}, nil
}
