package radar

import (
	"fmt"
	"strings"
	"unicode"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/anatolykoptev/go_oppradar/internal/engine"
)

// OtherSection is the implicit tag for leading text with no recognized header.
const OtherSection = "OTHER"

// resumeHeaders maps recognized resume header names to section tags.
var resumeHeaders = map[string]string{
	"summary":          "SUMMARY",
	"objective":        "SUMMARY",
	"profile":          "SUMMARY",
	"skills":           "SKILLS",
	"technical skills": "SKILLS",
	"experience":       "EXPERIENCE",
	"work experience":  "EXPERIENCE",
	"employment":       "EXPERIENCE",
	"projects":         "PROJECTS",
	"education":        "EDUCATION",
	"certifications":   "CERTIFICATIONS",
	"publications":     "PUBLICATIONS",
	"languages":        "LANGUAGES",
	"interests":        "INTERESTS",
}

// jobHeaders maps recognized job-posting header names to section tags.
var jobHeaders = map[string]string{
	"about":                  "ABOUT",
	"about us":               "ABOUT",
	"about the role":         "ABOUT",
	"the role":               "ABOUT",
	"responsibilities":       "RESPONSIBILITIES",
	"what you'll do":         "RESPONSIBILITIES",
	"what you will do":       "RESPONSIBILITIES",
	"requirements":           "REQUIREMENTS",
	"qualifications":         "REQUIREMENTS",
	"who you are":            "REQUIREMENTS",
	"what we're looking for": "REQUIREMENTS",
	"nice to have":           "NICE_TO_HAVE",
	"benefits":               "BENEFITS",
	"perks":                  "BENEFITS",
	"compensation":           "COMPENSATION",
	"salary":                 "COMPENSATION",
}

// jobBoilerplate lists phrase fragments that mark navigation chrome and
// legal disclaimers in scraped postings. Lines containing one are dropped.
var jobBoilerplate = []string{
	"equal opportunity employer",
	"all qualified applicants",
	"without regard to race",
	"all rights reserved",
	"privacy policy",
	"terms of service",
	"cookie",
	"sign in",
	"log in",
	"apply now",
	"back to jobs",
	"share this job",
	"subscribe to our newsletter",
}

// Normalize cleans raw text and splits it into named sections using the
// header vocabulary for the given source kind. Leading text before the
// first recognized header lands in OTHER. Returns ErrMalformedDocument
// when nothing survives normalization; the caller decides skip vs abort.
func Normalize(raw string, kind SourceKind) (*StructuredDocument, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("normalize: empty %s input: %w", kind, engine.ErrMalformedDocument)
	}

	text := raw
	if engine.LooksLikeHTML(text) {
		md, err := htmltomarkdown.ConvertString(text)
		if err != nil {
			text = engine.CleanHTML(text)
		} else {
			text = md
		}
	}

	headers := resumeHeaders
	if kind == SourceJob {
		headers = jobHeaders
	}

	doc := &StructuredDocument{Kind: kind}
	curTag := OtherSection
	var cur strings.Builder
	flush := func() {
		body := strings.TrimSpace(cur.String())
		cur.Reset()
		if body != "" {
			doc.Sections = append(doc.Sections, Section{Tag: curTag, Text: body})
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if kind == SourceJob && isBoilerplate(line) {
			continue
		}
		if tag, ok := headerTag(line, headers); ok {
			flush()
			curTag = tag
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
	}
	flush()

	if len(doc.Sections) == 0 {
		return nil, fmt.Errorf("normalize: no extractable section in %s input: %w", kind, engine.ErrMalformedDocument)
	}
	return doc, nil
}

// headerTag reports whether line is a section header and returns its tag.
// Vocabulary matches are case-insensitive. Any short all-uppercase line
// also delimits a section, keeping its own name as the tag.
func headerTag(line string, vocab map[string]string) (string, bool) {
	h := strings.TrimSpace(line)
	h = strings.TrimSuffix(h, ":")
	h = strings.TrimSpace(strings.TrimLeft(h, "#*- ")) // markdown header leftovers
	if h == "" || len(h) > 40 {
		return "", false
	}
	if tag, ok := vocab[strings.ToLower(h)]; ok {
		return tag, true
	}
	if isAllUpper(h) {
		return strings.ToUpper(engine.NormalizeSpace(h)), true
	}
	return "", false
}

// isAllUpper reports whether s contains at least two letters and no
// lowercase ones — the shape of a plain-text section header.
func isAllUpper(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			letters++
		}
	}
	return letters >= 2
}

func isBoilerplate(line string) bool {
	l := strings.ToLower(line)
	for _, phrase := range jobBoilerplate {
		if strings.Contains(l, phrase) {
			return true
		}
	}
	return false
}
