package ingest

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kailas-cloud/equidex/internal/domain/document"
)

var contentSelectors = []string{"main", "article", ".article-body", ".content", "#content"}

// ArticleFromHTML extracts the title and main text of a news page.
func ArticleFromHTML(r io.Reader) (document.Article, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return document.Article{}, fmt.Errorf("parse article html: %w", err)
	}

	doc.Find("script, style, nav, header, footer, aside").Remove()

	title := clean(doc.Find("title").First().Text())
	if h1 := clean(doc.Find("h1").First().Text()); h1 != "" {
		title = h1
	}

	var body string
	for _, sel := range contentSelectors {
		if s := doc.Find(sel); s.Length() > 0 {
			body = clean(s.First().Text())
			if body != "" {
				break
			}
		}
	}
	if body == "" {
		body = clean(doc.Find("body").Text())
	}

	if title == "" && body == "" {
		return document.Article{}, fmt.Errorf("article html has no title or text")
	}
	return document.Article{Title: title, Summary: body}, nil
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
