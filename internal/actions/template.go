package actions

import (
	"strconv"
	"strings"
)

type NodeKind uint8

const (
	NodeLiteral NodeKind = iota
	NodeContextRef
	NodeConfigLookup
	NodeExecLookup
	NodePositional
)

const (
	configPrefix = "GIT_CONFIG:"
	execPrefix   = "GIT_EXEC:"
)

// Node is one element of a parsed template. Text holds the literal text,
// the context key, the config key or the exec arguments depending on Kind.
// Quote is the quote character enclosing a placeholder, or 0.
type Node struct {
	Kind  NodeKind
	Text  string
	Index int
	Quote byte
}

// marker renders the node the way it was written.
func (n Node) marker() string {
	switch n.Kind {
	case NodeContextRef:
		return "{" + n.Text + "}"
	case NodeConfigLookup:
		return "{" + configPrefix + n.Text + "}"
	case NodeExecLookup:
		return "{" + execPrefix + n.Text + "}"
	case NodePositional:
		return "$" + strconv.Itoa(n.Index)
	default:
		return n.Text
	}
}

// Continuation says whether the entry after a plan entry runs.
type Continuation uint8

const (
	// RunNext marks the last entry of a plan.
	RunNext Continuation = iota
	RunNextOnSuccess
	RunNextOnFailure
	Unconditional
)

func (c Continuation) String() string {
	switch c {
	case RunNextOnSuccess:
		return "&&"
	case RunNextOnFailure:
		return "||"
	case Unconditional:
		return ";"
	default:
		return ""
	}
}

type Fragment struct {
	Nodes []Node
	Next  Continuation
}

// Template is a parsed action command line.
type Template struct {
	Source    string
	Fragments []Fragment
}

// Parse splits src on top-level &&, || and ; and parses placeholders. Quotes
// and backslash escapes are kept verbatim in the literals; expansion splits
// each fragment into words afterwards.
func Parse(src string) (Template, error) {
	frags, err := parse(src, true)
	if err != nil {
		return Template{}, err
	}
	return Template{Source: src, Fragments: frags}, nil
}

// parseNodes parses src as a single fragment, treating operators as text.
func parseNodes(src string) ([]Node, error) {
	frags, err := parse(src, false)
	if err != nil || len(frags) == 0 {
		return nil, err
	}
	return frags[0].Nodes, nil
}

func parse(src string, split bool) ([]Fragment, error) {
	var (
		frags          []Fragment
		nodes          []Node
		lit            strings.Builder
		single, double bool
		fragStart      int
		quoteStart     int
	)
	flushLit := func() {
		if lit.Len() > 0 {
			nodes = append(nodes, Node{Kind: NodeLiteral, Text: lit.String()})
			lit.Reset()
		}
	}
	endFragment := func(next Continuation, pos int) error {
		flushLit()
		nodes = trimNodes(nodes)
		if len(nodes) == 0 {
			if next == RunNext {
				return nil
			}
			return &TemplateSyntaxError{Position: fragStart, Reason: "empty command before " + next.String()}
		}
		frags = append(frags, Fragment{Nodes: nodes, Next: next})
		nodes = nil
		fragStart = pos
		return nil
	}

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '\\' && !single && i+1 < len(src):
			lit.WriteByte(c)
			lit.WriteByte(src[i+1])
			i++
		case c == '\'' && !double:
			single = !single
			quoteStart = i
			lit.WriteByte(c)
		case c == '"' && !single:
			double = !double
			quoteStart = i
			lit.WriteByte(c)
		case c == '{':
			end := i + 1
			for ; end < len(src) && src[end] != '}'; end++ {
				if src[end] == '{' {
					return nil, &TemplateSyntaxError{Position: end, Reason: "nested placeholder"}
				}
			}
			if end == len(src) {
				return nil, &TemplateSyntaxError{Position: i, Reason: "unterminated placeholder"}
			}
			body := src[i+1 : end]
			if strings.TrimSpace(body) == "" {
				return nil, &TemplateSyntaxError{Position: i, Reason: "empty placeholder"}
			}
			flushLit()
			n := placeholderNode(body)
			n.Quote = quoteChar(single, double)
			nodes = append(nodes, n)
			i = end
		case c == '$' && i+1 < len(src) && isDigit(src[i+1]):
			end := i + 1
			for end < len(src) && isDigit(src[end]) {
				end++
			}
			n, err := strconv.Atoi(src[i+1 : end])
			if err != nil {
				return nil, &TemplateSyntaxError{Position: i, Reason: "invalid positional placeholder"}
			}
			flushLit()
			nodes = append(nodes, Node{Kind: NodePositional, Index: n, Quote: quoteChar(single, double)})
			i = end - 1
		case split && !single && !double && c == ';':
			if err := endFragment(Unconditional, i+1); err != nil {
				return nil, err
			}
		case split && !single && !double && (c == '&' || c == '|') && i+1 < len(src) && src[i+1] == c:
			next := RunNextOnSuccess
			if c == '|' {
				next = RunNextOnFailure
			}
			if err := endFragment(next, i+2); err != nil {
				return nil, err
			}
			i++
		default:
			lit.WriteByte(c)
		}
	}
	if single || double {
		return nil, &TemplateSyntaxError{Position: quoteStart, Reason: "unterminated quote"}
	}
	if err := endFragment(RunNext, len(src)); err != nil {
		return nil, err
	}
	if n := len(frags); n > 0 {
		frags[n-1].Next = RunNext
	}
	return frags, nil
}

func placeholderNode(body string) Node {
	switch {
	case strings.HasPrefix(body, configPrefix):
		return Node{Kind: NodeConfigLookup, Text: strings.TrimSpace(strings.TrimPrefix(body, configPrefix))}
	case strings.HasPrefix(body, execPrefix):
		return Node{Kind: NodeExecLookup, Text: strings.TrimSpace(strings.TrimPrefix(body, execPrefix))}
	default:
		return Node{Kind: NodeContextRef, Text: strings.TrimSpace(body)}
	}
}

// trimNodes strips the whitespace around a fragment and drops literals that
// become empty.
func trimNodes(nodes []Node) []Node {
	if len(nodes) > 0 && nodes[0].Kind == NodeLiteral {
		nodes[0].Text = strings.TrimLeft(nodes[0].Text, " \t\r\n")
		if nodes[0].Text == "" {
			nodes = nodes[1:]
		}
	}
	if n := len(nodes); n > 0 && nodes[n-1].Kind == NodeLiteral {
		nodes[n-1].Text = strings.TrimRight(nodes[n-1].Text, " \t\r\n")
		if nodes[n-1].Text == "" {
			nodes = nodes[:n-1]
		}
	}
	return nodes
}

func quoteChar(single, double bool) byte {
	switch {
	case single:
		return '\''
	case double:
		return '"'
	default:
		return 0
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
