package ingest

import (
	"strings"

	"gitlab.com/golang-commonmark/markdown"
	"golang.org/x/net/html"

	"github.com/northfieldai/ragcore/internal/domain"
)

// extract decodes fileBytes into UTF-8 plain text for the given document
// type. Plain text is always supported; markdown is rendered to HTML via
// the teacher's indirect gitlab.com/golang-commonmark/markdown dependency
// and then stripped of tags with golang.org/x/net/html. PDF and DOCX have no
// extractor wired and fail with KindUnsupportedFormat, exactly as spec.md
// §4.3 allows.
func extract(docType domain.DocumentType, fileBytes []byte) (string, error) {
	switch docType {
	case domain.DocumentTypeTXT:
		return string(fileBytes), nil
	case domain.DocumentTypeMD:
		return markdownToPlainText(string(fileBytes)), nil
	case domain.DocumentTypePDF, domain.DocumentTypeDOCX:
		return "", domain.Wrap(domain.KindUnsupportedFormat,
			"no extractor wired for "+string(docType), nil)
	default:
		return "", domain.Wrap(domain.KindUnsupportedFormat,
			"unrecognized document type "+string(docType), nil)
	}
}

func markdownToPlainText(source string) string {
	md := markdown.New(markdown.XHTMLOutput(true))
	rendered := md.RenderToString([]byte(source))
	return stripHTML(rendered)
}

// stripHTML walks the token stream and keeps only text nodes, inserting a
// blank line between block-level elements so paragraph boundaries survive
// into the normalizer.
func stripHTML(doc string) string {
	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(doc))
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(tokenizer.Text())
		case html.StartTagToken, html.EndTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "p", "div", "br", "li", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "pre":
				b.WriteString("\n\n")
			}
		}
	}
}
