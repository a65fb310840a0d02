package soap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformedResponse reports a body that is not a SOAP envelope.
var ErrMalformedResponse = errors.New("soap: malformed response")

type node struct {
	name     string
	nilled   bool
	text     strings.Builder
	children []*node
}

func (n *node) child(local string) *node {
	for _, c := range n.children {
		if c.name == local {
			return c
		}
	}
	return nil
}

// DecodeResponse parses a SOAP envelope. A Body carrying soap:Fault yields a
// *Fault error. Otherwise the children of the response element are returned
// as a nested map keyed by local element name; repeated siblings become
// []any, leaves become strings and xsi:nil elements become nil.
func DecodeResponse(body []byte) (map[string]any, error) {
	root, err := parseTree(body)
	if err != nil {
		return nil, err
	}
	if root.name != "Envelope" {
		return nil, fmt.Errorf("%w: root element %q", ErrMalformedResponse, root.name)
	}
	soapBody := root.child("Body")
	if soapBody == nil {
		return nil, fmt.Errorf("%w: missing Body", ErrMalformedResponse)
	}
	if fault := soapBody.child("Fault"); fault != nil {
		return nil, faultFromNode(fault)
	}
	if len(soapBody.children) == 0 {
		return map[string]any{}, nil
	}
	result, ok := convert(soapBody.children[0]).(map[string]any)
	if !ok {
		// Response element carried text only.
		return map[string]any{"return": convert(soapBody.children[0])}, nil
	}
	return result, nil
}

func parseTree(body []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var (
		stack []*node
		root  *node
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local}
			for _, attr := range t.Attr {
				if attr.Name.Local == "nil" && strings.EqualFold(attr.Value, "true") {
					n.nilled = true
				}
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			} else if root == nil {
				root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedResponse)
	}
	return root, nil
}

func convert(n *node) any {
	if n.nilled {
		return nil
	}
	if len(n.children) == 0 {
		return strings.TrimSpace(n.text.String())
	}
	out := make(map[string]any, len(n.children))
	for _, c := range n.children {
		value := convert(c)
		existing, seen := out[c.name]
		if !seen {
			out[c.name] = value
			continue
		}
		if list, ok := existing.([]any); ok {
			out[c.name] = append(list, value)
			continue
		}
		out[c.name] = []any{existing, value}
	}
	return out
}

func faultFromNode(n *node) *Fault {
	f := &Fault{}
	for _, c := range n.children {
		switch c.name {
		case "faultcode", "Code":
			f.Code = textOf(c)
		case "faultstring", "Reason":
			f.Message = textOf(c)
		case "detail", "Detail":
			f.Detail = convert(c)
		}
	}
	return f
}

// textOf flattens SOAP 1.2 style nested Code/Value and Reason/Text nodes.
func textOf(n *node) string {
	if len(n.children) == 0 {
		return strings.TrimSpace(n.text.String())
	}
	return textOf(n.children[0])
}
