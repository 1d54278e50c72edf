package parser

import (
	"fmt"
	"strings"
	"sync"

	"github.com/corymhall/editorbridge/file"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// maxSnippet bounds the source text quoted in an error message.
const maxSnippet = 24

// Issue is a syntax problem found in a document.
type Issue struct {
	Message    string
	StartPoint tree_sitter.Point
	EndPoint   tree_sitter.Point
}

// SyntaxChecker parses documents with tree-sitter and reports ERROR and
// MISSING nodes. Tree-sitter parsers are not safe for concurrent use, so
// checks are serialized.
type SyntaxChecker struct {
	mu      sync.Mutex
	parsers map[file.Kind]*tree_sitter.Parser
}

func NewSyntaxChecker() (*SyntaxChecker, error) {
	languages := map[file.Kind]*tree_sitter.Language{
		file.TypeScript: tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
		file.TSX:        tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTSX()),
	}
	c := &SyntaxChecker{parsers: make(map[file.Kind]*tree_sitter.Parser, len(languages))}
	for kind, lang := range languages {
		parser := tree_sitter.NewParser()
		if err := parser.SetLanguage(lang); err != nil {
			parser.Close()
			c.Close()
			return nil, fmt.Errorf("failed to set language %s: %w", kind, err)
		}
		c.parsers[kind] = parser
	}
	return c, nil
}

// Supports reports whether documents of the given kind can be checked.
func (c *SyntaxChecker) Supports(kind file.Kind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.parsers[kind]
	return ok
}

func (c *SyntaxChecker) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for kind, p := range c.parsers {
		p.Close()
		delete(c.parsers, kind)
	}
}

// Check returns the syntax issues in content, in document order.
func (c *SyntaxChecker) Check(kind file.Kind, content []byte) ([]Issue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	parser, ok := c.parsers[kind]
	if !ok {
		return nil, fmt.Errorf("no parser for %s", kind)
	}
	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("parsing %s document failed", kind)
	}
	defer tree.Close()

	issues := []Issue{}
	collectIssues(tree.RootNode(), content, &issues)
	return issues, nil
}

func collectIssues(node *tree_sitter.Node, content []byte, issues *[]Issue) {
	if node == nil || !node.HasError() && !node.IsMissing() {
		return
	}
	switch {
	case node.IsMissing():
		*issues = append(*issues, Issue{
			Message:    fmt.Sprintf("missing %q", node.Kind()),
			StartPoint: node.StartPosition(),
			EndPoint:   node.EndPosition(),
		})
		return
	case node.IsError():
		*issues = append(*issues, Issue{
			Message:    unexpectedMessage(node.Utf8Text(content)),
			StartPoint: node.StartPosition(),
			EndPoint:   node.EndPosition(),
		})
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		collectIssues(node.Child(i), content, issues)
	}
}

func unexpectedMessage(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "syntax error"
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	if len(text) > maxSnippet {
		text = text[:maxSnippet] + "..."
	}
	return fmt.Sprintf("syntax error: unexpected %q", text)
}
