package radar

import (
	"context"
	"fmt"
	"os"
)

// ResumeProfile is the loaded resume with its derived signals, built once
// per run and reused for every posting.
type ResumeProfile struct {
	Doc       *StructuredDocument
	Embedding *Embedding
	Skills    []string
}

// LoadResume reads and normalizes the resume file. A resume with no
// recognized header degrades to a single OTHER section, not an error.
func LoadResume(path string) (*StructuredDocument, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("resume: read %s: %w", path, err)
	}
	doc, err := Normalize(string(b), SourceResume)
	if err != nil {
		return nil, fmt.Errorf("resume: %w", err)
	}
	return doc, nil
}

// BuildResumeProfile loads, embeds and extracts skills from the resume.
// Skills come from the SKILLS section when present, otherwise from the
// whole document.
func BuildResumeProfile(ctx context.Context, path string, embedder *Embedder) (*ResumeProfile, error) {
	doc, err := LoadResume(path)
	if err != nil {
		return nil, err
	}

	emb, err := embedder.Embed(ctx, doc, "resume")
	if err != nil {
		return nil, fmt.Errorf("resume: embed: %w", err)
	}

	skillText := doc.Section("SKILLS")
	if skillText == "" {
		skillText = doc.Pooled()
	}

	return &ResumeProfile{
		Doc:       doc,
		Embedding: emb,
		Skills:    ExtractSkills(skillText),
	}, nil
}
