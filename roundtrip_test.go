package livemarkup

import (
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// The long-run invariant: after any sequence of updates, the view's
// reconstructed output must equal a fresh render of the same bindings,
// and it must parse as the markup the template promised.

type feedPost struct {
	id     int
	author string
	body   string
}

func feedRegistry(t *testing.T) *Registry {
	t.Helper()
	post := MustCompile("post",
		`<article><span class="author">{author}</span><div class="body">{body}</div></article>`)
	spec, warnings := NewSpec("UI.post").
		Template(post).
		Attr("author", AttrString, true).
		Attr("body", AttrString, true).
		Build()
	if len(warnings) != 0 {
		t.Fatalf("spec warnings: %v", warnings)
	}
	reg := NewRegistry()
	if err := reg.Register(spec); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return reg
}

func feedBindings(title, owner string, posts []feedPost) Bindings {
	items := make([]any, len(posts))
	for i, p := range posts {
		items[i] = map[string]any{"id": p.id, "author": p.author, "body": p.body}
	}
	return Bindings{
		"title": title,
		"owner": map[string]any{"name": owner},
		"posts": items,
		"count": len(posts),
	}
}

func parseFragment(t *testing.T, doc string) []*html.Node {
	t.Helper()
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(doc), ctx)
	if err != nil {
		t.Fatalf("output does not parse: %v\n%s", err, doc)
	}
	return nodes
}

func findAll(nodes []*html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return out
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func TestRandomUpdateSequenceKeepsOutputConsistent(t *testing.T) {
	tmpl := MustCompile("feed",
		`<div class="feed"><h1>{title}</h1><ul><li :for={p <- posts}><UI.post key={p.id} author={p.author} body={p.body}/></li></ul><p class="summary">{count} posts for {owner.name}</p></div>`,
		WithComponents(feedRegistry(t)))
	view := tmpl.NewView()

	f := gofakeit.New(7)
	title := f.Sentence(3)
	owner := f.Name()
	var posts []feedPost
	nextID := 1
	newPost := func() feedPost {
		p := feedPost{id: nextID, author: f.Name(), body: f.Sentence(8)}
		nextID++
		return p
	}
	for i := 0; i < 3; i++ {
		posts = append(posts, newPost())
	}

	for round := 0; round < 50; round++ {
		if round > 0 {
			switch f.IntRange(0, 4) {
			case 0:
				at := f.IntRange(0, len(posts))
				posts = append(posts[:at], append([]feedPost{newPost()}, posts[at:]...)...)
			case 1:
				if len(posts) > 0 {
					at := f.IntRange(0, len(posts)-1)
					posts = append(posts[:at], posts[at+1:]...)
				}
			case 2:
				if len(posts) > 1 {
					at := f.IntRange(1, len(posts)-1)
					moved := posts[at]
					posts = append(posts[:at], posts[at+1:]...)
					posts = append([]feedPost{moved}, posts...)
				}
			case 3:
				if len(posts) > 0 {
					posts[f.IntRange(0, len(posts)-1)].body = f.Sentence(8)
				}
			case 4:
				owner = f.Name()
			}
		}

		bindings := feedBindings(title, owner, posts)
		patch, err := view.Render(bindings)
		if err != nil {
			t.Fatalf("round %d: render failed: %v", round, err)
		}
		if round > 0 && patch.FullReplace() {
			t.Fatalf("round %d: statics never change, yet the patch is a full replace", round)
		}

		got := view.HTML()
		if want := render(t, tmpl, bindings); got != want {
			t.Fatalf("round %d: view drifted from a fresh render\n got: %s\nwant: %s", round, got, want)
		}

		nodes := parseFragment(t, got)
		articles := findAll(nodes, "article")
		if len(articles) != len(posts) {
			t.Fatalf("round %d: %d articles for %d posts\n%s", round, len(articles), len(posts), got)
		}
		for i, a := range articles {
			spans := findAll([]*html.Node{a}, "span")
			if len(spans) != 1 || textOf(spans[0]) != posts[i].author {
				t.Fatalf("round %d: article %d author mismatch\n%s", round, i, got)
			}
		}
		if h1 := findAll(nodes, "h1"); len(h1) != 1 || textOf(h1[0]) != title {
			t.Fatalf("round %d: title mismatch\n%s", round, got)
		}
	}
}

func TestGeneratedContentSurvivesEscaping(t *testing.T) {
	tmpl := MustCompile("quote", `<blockquote>{text}</blockquote>`)
	f := gofakeit.New(11)

	for i := 0; i < 20; i++ {
		text := f.Sentence(6) + ` <script>alert("` + f.Word() + `")</script> & more`
		got := render(t, tmpl, Bindings{"text": text})

		nodes := parseFragment(t, got)
		if scripts := findAll(nodes, "script"); len(scripts) != 0 {
			t.Fatalf("escaped text parsed as a script element: %s", got)
		}
		quotes := findAll(nodes, "blockquote")
		if len(quotes) != 1 {
			t.Fatalf("expected one blockquote: %s", got)
		}
		// The parser unescapes entities, so the text round-trips exactly.
		if textOf(quotes[0]) != text {
			t.Fatalf("text did not survive escaping:\n got: %q\nwant: %q", textOf(quotes[0]), text)
		}
	}
}
