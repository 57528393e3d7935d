package notifier

import (
	"embed"
	"fmt"
	"html"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/avasilyev/jobscout/internal/match"
	"github.com/avasilyev/jobscout/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	subjectTmpl = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/subject.tmpl"))
	bodyTxtTmpl = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/body.txt.tmpl"))
	bodyHTML    = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/body.html.tmpl"))
)

// emailData is the template context for one alert email.
type emailData struct {
	Title               string
	Company             string
	Location            string
	URL                 string
	IsNew               bool
	Summary             string
	Snippets            []string
	HighlightedSnippets []htmltemplate.HTML
}

func newEmailData(d model.CandidateDecision) emailData {
	terms := d.Verdict.MatchedTerms()
	highlighted := make([]htmltemplate.HTML, 0, len(d.Verdict.Snippets))
	for _, s := range d.Verdict.Snippets {
		// Escape first, then mark the keywords, so the <b> tags survive.
		marked := match.HighlightKeywords(html.EscapeString(s), terms, "<b>", "</b>")
		highlighted = append(highlighted, htmltemplate.HTML(marked))
	}

	return emailData{
		Title:               d.Posting.Title,
		Company:             d.Posting.Company,
		Location:            d.Posting.Location,
		URL:                 d.Posting.URL,
		IsNew:               d.IsNew,
		Summary:             d.Verdict.Summary,
		Snippets:            d.Verdict.Snippets,
		HighlightedSnippets: highlighted,
	}
}

// renderEmail produces the subject and both body variants for one alert.
func renderEmail(d model.CandidateDecision) (subject, textBody, htmlBody string, err error) {
	data := newEmailData(d)

	var sb, tb, hb strings.Builder
	if err := subjectTmpl.Execute(&sb, data); err != nil {
		return "", "", "", fmt.Errorf("render subject: %w", err)
	}
	if err := bodyTxtTmpl.Execute(&tb, data); err != nil {
		return "", "", "", fmt.Errorf("render text body: %w", err)
	}
	if err := bodyHTML.Execute(&hb, data); err != nil {
		return "", "", "", fmt.Errorf("render html body: %w", err)
	}

	return strings.TrimSpace(sb.String()), tb.String(), hb.String(), nil
}
