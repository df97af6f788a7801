package radar

import (
	"sort"
	"strings"
	"unicode"
)

// skillLexicon is the keyword table used to extract skill terms from free
// text. Deliberately tech-heavy: the overlap signal only needs terms that
// appear verbatim in both resumes and postings.
var skillLexicon = map[string]bool{
	// languages
	"python": true, "go": true, "golang": true, "java": true, "c++": true,
	"c#": true, "rust": true, "ruby": true, "php": true, "scala": true,
	"kotlin": true, "swift": true, "typescript": true, "javascript": true,
	"sql": true, "bash": true, "r": true, "matlab": true, "perl": true,
	// data / ML
	"pytorch": true, "tensorflow": true, "keras": true, "scikit-learn": true,
	"pandas": true, "numpy": true, "spark": true, "hadoop": true,
	"airflow": true, "dbt": true, "kafka": true, "flink": true,
	"llm": true, "nlp": true, "opencv": true, "mlops": true,
	"machine learning": true, "deep learning": true, "computer vision": true,
	// storage
	"postgresql": true, "postgres": true, "mysql": true, "sqlite": true,
	"mongodb": true, "redis": true, "elasticsearch": true, "cassandra": true,
	"dynamodb": true, "bigquery": true, "snowflake": true, "clickhouse": true,
	// infra
	"kubernetes": true, "docker": true, "terraform": true, "ansible": true,
	"aws": true, "gcp": true, "azure": true, "linux": true, "git": true,
	"jenkins": true, "prometheus": true, "grafana": true, "helm": true,
	"nginx": true, "grpc": true, "graphql": true, "rest": true,
	"ci/cd": true, "serverless": true, "microservices": true,
	// web
	"react": true, "vue": true, "angular": true, "node.js": true,
	"django": true, "flask": true, "fastapi": true, "rails": true,
	"spring": true, ".net": true, "html": true, "css": true,
	// practice
	"agile": true, "scrum": true, "tdd": true, "etl": true,
	"oauth": true, "saml": true, "websocket": true,
}

// skillStopWords filters noise tokens before lexicon lookup.
var skillStopWords = map[string]bool{
	"and": true, "the": true, "for": true, "with": true, "you": true,
	"are": true, "have": true, "will": true, "this": true, "that": true,
	"from": true, "our": true, "your": true, "requires": true, "required": true,
	"experience": true, "knowledge": true, "strong": true, "plus": true,
}

// ExtractSkills tokenizes text and returns the sorted set of lexicon terms
// found in it. Tokenization preserves tech suffixes like "c++", "c#" and
// "node.js" by treating + # . / as word chars.
func ExtractSkills(text string) []string {
	found := make(map[string]bool)
	var word strings.Builder
	flush := func() {
		w := word.String()
		word.Reset()
		w = strings.TrimRight(w, "./")
		if w == "" || skillStopWords[w] {
			return
		}
		if skillLexicon[w] {
			found[w] = true
		}
	}
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' || r == '.' || r == '/' {
			word.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	// Multi-word lexicon terms are matched as substrings of the folded text.
	folded := strings.ToLower(text)
	for term := range skillLexicon {
		if strings.Contains(term, " ") && strings.Contains(folded, term) {
			found[term] = true
		}
	}

	skills := make([]string, 0, len(found))
	for s := range found {
		skills = append(skills, s)
	}
	sort.Strings(skills)
	return skills
}
