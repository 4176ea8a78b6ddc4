package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"wikirag_web/wikirag"
)

//go:embed templates/*.html static/styles.css
var assets embed.FS

// Renderer turns answers into the gateway's HTML pages.
type Renderer struct {
	md    goldmark.Markdown
	pages *template.Template
	css   []byte
}

// FormPage feeds form.html.
type FormPage struct {
	Models       []string
	DefaultModel string
	DefaultPages string
}

// ResultPage feeds result.html.
type ResultPage struct {
	Question string
	Model    string
	Pages    string
	Answer   template.HTML
	Output   string
	Links    []Link
}

// ErrorPage feeds error.html.
type ErrorPage struct {
	Status    int
	Question  string
	Message   string
	RequestID string
}

// Link is one reference as shown on the result page. Href is empty for
// references that are not http(s) URLs.
type Link struct {
	Href  string
	Label string
}

func New() (*Renderer, error) {
	pages, err := template.ParseFS(assets, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	css, err := assets.ReadFile("static/styles.css")
	if err != nil {
		return nil, err
	}
	return &Renderer{
		md:    goldmark.New(goldmark.WithExtensions(extension.GFM)),
		pages: pages,
		css:   css,
	}, nil
}

func (r *Renderer) Stylesheet() []byte { return r.css }

func (r *Renderer) Form(w io.Writer, p FormPage) error {
	return r.pages.ExecuteTemplate(w, "form.html", p)
}

// Result renders the answer for q. The answer text is treated as markdown.
func (r *Renderer) Result(w io.Writer, q wikirag.Query, ans wikirag.Answer) error {
	body, err := r.AnswerHTML(ans.Text)
	if err != nil {
		return err
	}
	return r.pages.ExecuteTemplate(w, "result.html", ResultPage{
		Question: q.Question,
		Model:    q.Model,
		Pages:    q.Pages,
		Answer:   body,
		Output:   ans.Diagnostics,
		Links:    References(ans.References),
	})
}

func (r *Renderer) Error(w io.Writer, p ErrorPage) error {
	return r.pages.ExecuteTemplate(w, "error.html", p)
}

// AnswerHTML converts markdown to HTML. Raw HTML in the input is dropped by
// goldmark; links are rewritten to open in a new tab.
func (r *Renderer) AnswerHTML(text string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("convert answer: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(&buf)
	if err != nil {
		return "", fmt.Errorf("parse answer html: %w", err)
	}
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		a.SetAttr("target", "_blank")
		a.SetAttr("rel", "noopener noreferrer")
	})
	out, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("serialize answer html: %w", err)
	}
	return template.HTML(out), nil
}

// References maps reference lines to links.
func References(refs []string) []Link {
	links := make([]Link, 0, len(refs))
	for _, ref := range refs {
		links = append(links, referenceLink(ref))
	}
	return links
}

func referenceLink(ref string) Link {
	trimmed := strings.TrimSpace(ref)
	u, err := url.Parse(trimmed)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Link{Label: ref}
	}
	// u.Path is already unescaped, which reads better than the raw URL.
	return Link{Href: u.String(), Label: strings.TrimSuffix(u.Host+u.Path, "/")}
}
