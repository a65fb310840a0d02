package soap

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	envelopeNS   = "http://schemas.xmlsoap.org/soap/envelope/"
	envPrefix    = "soapenv"
	targetPrefix = "tns"
	pathSep      = "__"
)

// Request is one operation invocation.
type Request struct {
	Operation string
	// Args is the nested element graph placed inside the operation element.
	Args map[string]any
	// Order lists leaf paths, joined with "__", in schema sequence order.
	// Elements not covered by Order are emitted after ordered siblings,
	// sorted by name.
	Order []string
}

// EncodeEnvelope renders a SOAP 1.1 envelope for req with every element
// qualified by namespace.
func EncodeEnvelope(namespace string, req Request) ([]byte, error) {
	if strings.TrimSpace(req.Operation) == "" {
		return nil, fmt.Errorf("soap: operation name required")
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	ranks := rankPaths(req.Order)

	envelope := xml.StartElement{
		Name: xml.Name{Local: envPrefix + ":Envelope"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns:" + envPrefix}, Value: envelopeNS},
			{Name: xml.Name{Local: "xmlns:" + targetPrefix}, Value: namespace},
		},
	}
	header := xml.StartElement{Name: xml.Name{Local: envPrefix + ":Header"}}
	body := xml.StartElement{Name: xml.Name{Local: envPrefix + ":Body"}}
	op := qualified(req.Operation)

	tokens := []xml.Token{envelope, header, header.End(), body, op}
	for _, tok := range tokens {
		if err := enc.EncodeToken(tok); err != nil {
			return nil, err
		}
	}
	if err := encodeMap(enc, "", req.Args, ranks); err != nil {
		return nil, err
	}
	for _, tok := range []xml.Token{op.End(), body.End(), envelope.End()} {
		if err := enc.EncodeToken(tok); err != nil {
			return nil, err
		}
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func qualified(local string) xml.StartElement {
	return xml.StartElement{Name: xml.Name{Local: targetPrefix + ":" + local}}
}

// rankPaths maps every path prefix to the index of its first leaf in order.
func rankPaths(order []string) map[string]int {
	ranks := make(map[string]int, len(order))
	for i, path := range order {
		parts := strings.Split(path, pathSep)
		for j := range parts {
			prefix := strings.Join(parts[:j+1], pathSep)
			if _, ok := ranks[prefix]; !ok {
				ranks[prefix] = i
			}
		}
	}
	return ranks
}

func sortedKeys(prefix string, m map[string]any, ranks map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	rank := func(k string) int {
		path := k
		if prefix != "" {
			path = prefix + pathSep + k
		}
		if r, ok := ranks[path]; ok {
			return r
		}
		return math.MaxInt
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := rank(keys[i]), rank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})
	return keys
}

func encodeMap(enc *xml.Encoder, prefix string, m map[string]any, ranks map[string]int) error {
	for _, key := range sortedKeys(prefix, m, ranks) {
		path := key
		if prefix != "" {
			path = prefix + pathSep + key
		}
		if err := encodeValue(enc, key, path, m[key], ranks); err != nil {
			return err
		}
	}
	return nil
}

func encodeValue(enc *xml.Encoder, name, path string, value any, ranks map[string]int) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		for _, item := range v {
			if err := encodeValue(enc, name, path, item, ranks); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		start := qualified(name)
		if err := enc.EncodeToken(start); err != nil {
			return err
		}
		if err := encodeMap(enc, path, v, ranks); err != nil {
			return err
		}
		return enc.EncodeToken(start.End())
	default:
		text, err := scalarText(v)
		if err != nil {
			return fmt.Errorf("soap: element %s: %w", path, err)
		}
		start := qualified(name)
		if err := enc.EncodeToken(start); err != nil {
			return err
		}
		if err := enc.EncodeToken(xml.CharData(text)); err != nil {
			return err
		}
		return enc.EncodeToken(start.End())
	}
}

func scalarText(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case int32:
		return strconv.FormatInt(int64(t), 10), nil
	case time.Time:
		return t.Format(time.RFC3339), nil
	case fmt.Stringer:
		return t.String(), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}
