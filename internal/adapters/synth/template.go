package synth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"

	"hotel_agent/internal/domain"
)

const (
	maxExcerpt = 160
	maxTweet   = 280
)

var ErrNoHotels = errors.New("synth: no hotels")

var funcs = template.FuncMap{
	"price": func(f float64) string { return fmt.Sprintf("$%.0f", f) },
	"stars": func(f float64) string { return fmt.Sprintf("%.1f", f) },
	"inc":   func(i int) int { return i + 1 },
	"join":  strings.Join,
}

var bodyTmpl = template.Must(template.New("body").Funcs(funcs).Parse(
	`# {{.Title}}

Planning a trip to {{.Location}}? We checked today's listings and picked {{len .Hotels}} stays worth a look.
{{range $i, $h := .Hotels}}
## {{inc $i}}. {{$h.Name}}

- **From:** {{price $h.NightlyPrice}}/night
- **Rating:** {{stars $h.Rating}}/5
{{- if $h.Amenities}}
- **Amenities:** {{join $h.Amenities ", "}}
{{- end}}
{{- if $h.Description}}

{{$h.Description}}
{{- end}}
{{if $h.ImageRef}}
![{{$h.Name}}]({{$h.ImageRef}})
{{end -}}
{{end}}
Prices change quickly, so book soon if one of these catches your eye.
`))

var captionTmpl = map[string]*template.Template{
	"twitter": template.Must(template.New("twitter").Funcs(funcs).Parse(
		`🏨 {{len .Hotels}} great hotels in {{.Location}} from {{price .MinPrice}}/night. Top pick: {{.Top.Name}} ⭐{{stars .Top.Rating}} #travel #hotels #{{.Tag}}`)),
	"facebook": template.Must(template.New("facebook").Funcs(funcs).Parse(
		`Heading to {{.Location}}? Here are {{len .Hotels}} hotels we like right now, starting at {{price .MinPrice}} a night.{{range .Hotels}}
• {{.Name}} ({{price .NightlyPrice}}, {{stars .Rating}}/5){{end}}`)),
	"instagram": template.Must(template.New("instagram").Funcs(funcs).Parse(
		`✨ {{.Location}} stays from {{price .MinPrice}}/night ✨
Our favourite: {{.Top.Name}} ⭐{{stars .Top.Rating}}
#{{.Tag}} #travelgram #hotelstay #wanderlust`)),
}

const genericCaption = `{{.Title}} | {{len .Hotels}} picks from {{price .MinPrice}}/night`

// Template is the built-in content synthesizer. It renders text/template
// layouts over the hotel list and never calls out of process.
type Template struct {
	platforms []string
}

// NewTemplate renders a caption for every platform listed.
func NewTemplate(platforms []string) *Template {
	return &Template{platforms: append([]string(nil), platforms...)}
}

type view struct {
	Title    string
	Location string
	Hotels   []domain.HotelRecord
	MinPrice float64
	Top      domain.HotelRecord
	Tag      string
}

func (t *Template) Synthesize(ctx context.Context, location string, hotels []domain.HotelRecord) (domain.Content, error) {
	if len(hotels) == 0 {
		return domain.Content{}, ErrNoHotels
	}
	if err := ctx.Err(); err != nil {
		return domain.Content{}, err
	}

	v := view{Location: location, Hotels: hotels, MinPrice: hotels[0].NightlyPrice, Top: hotels[0], Tag: hashtag(location)}
	for _, h := range hotels[1:] {
		v.MinPrice = min(v.MinPrice, h.NightlyPrice)
		if h.Rating > v.Top.Rating {
			v.Top = h
		}
	}
	v.Title = fmt.Sprintf("Top %d Hotels in %s: stays from $%.0f/night", len(hotels), location, v.MinPrice)

	body, err := render(bodyTmpl, v)
	if err != nil {
		return domain.Content{}, fmt.Errorf("render body: %w", err)
	}

	captions := make(map[string]string, len(t.platforms))
	for _, p := range t.platforms {
		tmpl, ok := captionTmpl[p]
		if !ok {
			tmpl, err = template.New(p).Funcs(funcs).Parse(genericCaption)
			if err != nil {
				return domain.Content{}, fmt.Errorf("parse %s caption: %w", p, err)
			}
		}
		c, err := render(tmpl, v)
		if err != nil {
			return domain.Content{}, fmt.Errorf("render %s caption: %w", p, err)
		}
		if p == "twitter" {
			c = truncate(c, maxTweet)
		}
		captions[p] = c
	}

	return domain.Content{
		Title:          v.Title,
		Body:           body,
		Excerpt:        excerpt(location, hotels, v.MinPrice),
		ImageRef:       hotels[0].ImageRef,
		SocialCaptions: captions,
	}, nil
}

func render(t *template.Template, v view) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, v); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func excerpt(location string, hotels []domain.HotelRecord, minPrice float64) string {
	names := make([]string, 0, 3)
	for _, h := range hotels[:min(3, len(hotels))] {
		names = append(names, h.Name)
	}
	s := fmt.Sprintf("Where to stay in %s from $%.0f a night: %s.", location, minPrice, strings.Join(names, ", "))
	return truncate(s, maxExcerpt)
}

// truncate cuts s to at most n runes, ending with an ellipsis when cut.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n-1])) + "…"
}

func hashtag(location string) string {
	var b strings.Builder
	for _, r := range location {
		if r == ' ' || r == '-' || r == '\'' {
			continue
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return "travel"
	}
	return b.String()
}
