package livemarkup

import (
	"strings"
	"sync"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
)

var (
	minifier     *minify.M
	minifierOnce sync.Once
)

// getMinifier returns a configured HTML minifier (singleton).
func getMinifier() *minify.M {
	minifierOnce.Do(func() {
		minifier = minify.New()
		minifier.AddFunc("text/html", html.Minify)
	})
	return minifier
}

// minifyProgram minifies a compiled program's static fragments in place,
// recursing into loop items and slot entry bodies. Statics are fragments,
// not documents, so a failed minify keeps the original. Fingerprints stay
// as computed from the source shape; they only need to be stable and
// distinct, not to hash the exact bytes.
func minifyProgram(p *program) {
	minifyStatics(p.statics)
	for _, s := range p.slots {
		switch s := s.(type) {
		case *comprehensionSlot:
			minifyProgram(s.item)
		case *componentListSlot:
			minifyStatics(s.statics)
		case *componentSlot:
			for _, def := range s.slotDefs {
				minifyProgram(def.prog)
			}
		}
	}
}

func minifyStatics(statics []string) {
	for i, s := range statics {
		statics[i] = minifyFragment(s)
	}
}

// minifyFragment removes unnecessary whitespace from a static fragment
// while preserving content.
func minifyFragment(fragment string) string {
	if strings.Contains(fragment, "<") {
		minified, err := getMinifier().String("text/html", fragment)
		if err != nil {
			return fragment
		}
		return minified
	}
	return collapseWhitespace(fragment)
}

// collapseWhitespace squeezes runs of whitespace to single spaces without
// trimming the edges, so text stays separated from its neighbors.
func collapseWhitespace(text string) string {
	var sb strings.Builder
	inSpace := false
	for _, r := range text {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !inSpace {
				sb.WriteByte(' ')
				inSpace = true
			}
			continue
		}
		inSpace = false
		sb.WriteRune(r)
	}
	return sb.String()
}
