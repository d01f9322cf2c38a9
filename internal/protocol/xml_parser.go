package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/codefionn/agentloop/internal/tools"
)

// ErrNeedMoreInput signals that the chunk ends inside a tool block while the
// model is still streaming. The caller re-invokes Parse with the grown text;
// this is never an error state.
var ErrNeedMoreInput = errors.New("tool call incomplete, need more input")

// XMLParser extracts a tool call embedded as tagged text in free-form model
// output. It is an explicit state machine (outside any tag, inside a tool
// block, inside a parameter value) so the partial/complete distinction is a
// first-class state rather than an emergent property of substring searches.
//
// The format is deliberately laxer than XML: parameter values carry verbatim
// source code, so literal '<' and '>' inside values are accepted; only the
// exact matching close tag ends a value. Repeated sibling tags of the same
// name form array parameters.
type XMLParser struct {
	catalog *tools.Catalog
}

// NewXMLParser creates a parser over the given catalog. Only catalog tool
// names open a tool block; other tag-like text is ignored.
func NewXMLParser(catalog *tools.Catalog) *XMLParser {
	return &XMLParser{catalog: catalog}
}

type scanState int

const (
	// stateOutside scans free text for a known tool's opening tag.
	stateOutside scanState = iota
	// stateInTool is between parameter tags inside an open tool block.
	stateInTool
	// stateInValue accumulates a parameter value until its close tag.
	stateInValue
)

type tagStatus int

const (
	tagComplete tagStatus = iota
	tagIncomplete
	tagInvalid
)

// readTag inspects text starting at the '<' at position i. A tag is
// "<" ["/"] name ">" with name in [A-Za-z0-9_-]+. tagIncomplete means the
// text ends while still a valid tag prefix.
func readTag(text string, i int) (name string, closing bool, end int, status tagStatus) {
	j := i + 1
	if j < len(text) && text[j] == '/' {
		closing = true
		j++
	}
	start := j
	for j < len(text) && isTagNameChar(text[j]) {
		j++
	}
	if j == len(text) {
		return text[start:], closing, j, tagIncomplete
	}
	if j == start || text[j] != '>' {
		return "", false, i, tagInvalid
	}
	return text[start:j], closing, j + 1, tagComplete
}

func isTagNameChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' || c == '_' || c == '-'
}

// Parse scans raw for the first complete tool call. While partial is true an
// unterminated block yields (partial invocation, ErrNeedMoreInput); once
// partial is false the same condition is a *tools.ToolError parse error
// carrying the offending tool name, retrievable with errors.As. (nil, nil)
// means the text contains no tool call at all.
func (p *XMLParser) Parse(raw string, partial bool) (*tools.Invocation, error) {
	state := stateOutside
	var def *tools.Definition
	var toolName, paramName string
	var value strings.Builder
	params := make(map[string]interface{})

	i := 0
	for i < len(raw) {
		switch state {
		case stateOutside:
			if raw[i] != '<' {
				i++
				continue
			}
			name, closing, end, status := readTag(raw, i)
			switch status {
			case tagComplete:
				if !closing {
					if d, ok := p.catalog.ByName(name); ok {
						def, toolName = d, name
						state = stateInTool
						i = end
						continue
					}
				}
				i++
			case tagIncomplete:
				if partial && !closing && p.couldBeToolName(name) {
					return nil, ErrNeedMoreInput
				}
				i++
			default:
				i++
			}

		case stateInTool:
			if raw[i] != '<' {
				// Stray text between parameter tags is tolerated.
				i++
				continue
			}
			name, closing, end, status := readTag(raw, i)
			switch status {
			case tagComplete:
				if closing && name == toolName {
					return finishInvocation(def, toolName, params), nil
				}
				if !closing {
					paramName = name
					value.Reset()
					state = stateInValue
					i = end
					continue
				}
				i++
			case tagIncomplete:
				if partial {
					return partialInvocation(def, toolName, params), ErrNeedMoreInput
				}
				i++
			default:
				i++
			}

		case stateInValue:
			if raw[i] == '<' {
				closeTag := "</" + paramName + ">"
				rest := raw[i:]
				if strings.HasPrefix(rest, closeTag) {
					addParam(params, paramName, value.String())
					i += len(closeTag)
					paramName = ""
					state = stateInTool
					continue
				}
				if partial && len(rest) < len(closeTag) && strings.HasPrefix(closeTag, rest) {
					// The close tag may be split across chunks.
					addParam(params, paramName, value.String())
					return partialInvocation(def, toolName, params), ErrNeedMoreInput
				}
				// Literal '<' inside the value.
			}
			value.WriteByte(raw[i])
			i++
		}
	}

	switch state {
	case stateInTool:
		if partial {
			return partialInvocation(def, toolName, params), ErrNeedMoreInput
		}
		return nil, tools.NewParseError(toolName,
			fmt.Sprintf("unterminated <%s> block", toolName))
	case stateInValue:
		if partial {
			addParam(params, paramName, value.String())
			return partialInvocation(def, toolName, params), ErrNeedMoreInput
		}
		return nil, tools.NewParseError(toolName,
			fmt.Sprintf("unterminated <%s> parameter in %s call", paramName, toolName))
	default:
		return nil, nil
	}
}

// couldBeToolName reports whether a truncated tag name is still a prefix of
// some catalog tool.
func (p *XMLParser) couldBeToolName(prefix string) bool {
	if prefix == "" {
		return true
	}
	for _, def := range p.catalog.All() {
		if strings.HasPrefix(def.Name(), prefix) {
			return true
		}
	}
	return false
}

// addParam stores a parameter value, promoting repeated sibling tags of the
// same name to an array.
func addParam(params map[string]interface{}, name, value string) {
	existing, ok := params[name]
	if !ok {
		params[name] = value
		return
	}
	switch prev := existing.(type) {
	case []string:
		params[name] = append(prev, value)
	case string:
		params[name] = []string{prev, value}
	default:
		params[name] = value
	}
}

func finishInvocation(def *tools.Definition, name string, params map[string]interface{}) *tools.Invocation {
	return &tools.Invocation{
		Kind:   def.Kind,
		Name:   name,
		Params: params,
	}
}

func partialInvocation(def *tools.Definition, name string, params map[string]interface{}) *tools.Invocation {
	if def == nil {
		return nil
	}
	return &tools.Invocation{
		Kind:    def.Kind,
		Name:    name,
		Params:  params,
		Partial: true,
	}
}
