package tracking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/net/html"

	"github.com/leadproton/server/internal/model"
)

func TestSubstituteTokens(t *testing.T) {
	lead := model.Lead{FirstName: "Ann", LastName: "Lee", CompanyName: "Acme", Role: "CTO"}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"basic", "Hi {firstName} at {companyName}", "Hi Ann at Acme"},
		{"all tokens repeated", "{firstName} {lastName} ({role}) {firstName}", "Ann Lee (CTO) Ann"},
		{"unknown token kept", "Dear {title} {lastName}", "Dear {title} Lee"},
		{"no tokens", "plain text", "plain text"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SubstituteTokens(tt.in, lead))
		})
	}
}

func TestSubstituteTokens_IdempotentWithoutTokens(t *testing.T) {
	lead := model.Lead{FirstName: "Ann"}
	in := "Nothing {to} replace"
	once := SubstituteTokens(in, lead)
	assert.Equal(t, once, SubstituteTokens(once, lead))
}

const pixelE1 = `<img src="pixel.gif" width="1" height="1" alt="" style="display:none;" data-trackable-pixel="true" data-lead-id="L1" data-email-id="E1" />`

func TestInject_WrapsAnchors(t *testing.T) {
	in := `<p>See <a href="https://acme.io/pricing?plan=pro" class="btn">pricing</a> and <a href="#top">top</a>.</p>`

	got := NewInjector("").Inject(in, "L1", "E1")

	want := `<p>See <a href="https://acme.io/pricing?plan=pro" data-trackable-link="true" data-lead-id="L1" data-email-id="E1" data-original-url="https%3A%2F%2Facme.io%2Fpricing%3Fplan%3Dpro" class="btn">pricing</a> and <a href="#top">top</a>.</p>` + pixelE1
	assert.Equal(t, want, got)
}

func TestInject_SkipsReservedAndMarkedAnchors(t *testing.T) {
	in := `<a href="data-x">a</a><a href="https://x.io" data-trackable-link="true">b</a><a name="anchor">c</a>`

	got := NewInjector("").Inject(in, "L1", "E1")

	assert.Equal(t, in+pixelE1, got)
	assert.Equal(t, 1, strings.Count(got, "data-trackable-pixel"))
}

func TestInject_Deterministic(t *testing.T) {
	in := `<div><a href="https://a.io">a</a><br/><a href='https://b.io/x y'>b</a></div>`
	inj := NewInjector("")
	assert.Equal(t, inj.Inject(in, "L1", "E1"), inj.Inject(in, "L1", "E1"))
	assert.Equal(t, 2, strings.Count(inj.Inject(in, "L1", "E1"), `data-trackable-link="true"`))
}

func TestInject_PlainTextBody(t *testing.T) {
	got := NewInjector("").Inject("Hello Ann,\nThanks & regards", "L1", "E1")
	assert.Equal(t, "Hello Ann,\nThanks & regards"+pixelE1, got)
}

func TestInject_KeepsTrailingPartialTag(t *testing.T) {
	inj := NewInjector("")

	assert.Equal(t, "Write me at <john@x.com"+pixelE1, inj.Inject("Write me at <john@x.com", "L1", "E1"))
	assert.Equal(t, "a<b"+pixelE1, inj.Inject("a<b", "L1", "E1"))
	assert.Equal(t, "x < y"+pixelE1, inj.Inject("x < y", "L1", "E1"))
}

func TestInject_WithCollector(t *testing.T) {
	inj := NewInjector("https://leads.example.com/")

	got := inj.Inject(`<a href="https://acme.io">x</a>`, "L1", "E1")

	assert.Contains(t, got, `href="https://leads.example.com/t/c/L1/E1?u=https%3A%2F%2Facme.io"`)
	assert.Contains(t, got, `data-original-url="https%3A%2F%2Facme.io"`)
	assert.Contains(t, got, `<img src="https://leads.example.com/t/o/L1/E1"`)
}

func TestInject_WithCollectorKeepsNonHTTPLinks(t *testing.T) {
	inj := NewInjector("https://leads.example.com")

	tests := []struct {
		href     string
		original string
	}{
		{"mailto:ann@acme.io", "mailto%3Aann%40acme.io"},
		{"tel:+15551234", "tel%3A%2B15551234"},
		{"/pricing", "%2Fpricing"},
	}
	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			got := inj.Inject(`<a href="`+tt.href+`">x</a>`, "L1", "E1")

			assert.Contains(t, got, `<a href="`+html.EscapeString(tt.href)+`" data-trackable-link="true"`)
			assert.Contains(t, got, `data-original-url="`+tt.original+`"`)
			assert.NotContains(t, got, "/t/c/")
		})
	}
}

func TestRedirectable(t *testing.T) {
	assert.True(t, Redirectable("https://acme.io/pricing"))
	assert.True(t, Redirectable("HTTP://acme.io"))
	assert.False(t, Redirectable("mailto:ann@acme.io"))
	assert.False(t, Redirectable("/pricing"))
	assert.False(t, Redirectable("javascript:alert(1)"))
	assert.False(t, Redirectable("https://"))
}

func TestLinks(t *testing.T) {
	inj := NewInjector("https://leads.example.com")
	body := inj.Inject(`<a href="https://acme.io/a?b=1&c=2">x</a><a href="#top">t</a><a href="mailto:ann@acme.io">m</a>`, "L1", "E1")

	assert.Equal(t, []string{"https://acme.io/a?b=1&c=2", "mailto:ann@acme.io"}, Links(body))
	assert.Nil(t, Links("no links here"))
}

func TestEncodeURIComponent(t *testing.T) {
	assert.Equal(t, "a-b_c.d!e~f*g'h(i)j", EncodeURIComponent("a-b_c.d!e~f*g'h(i)j"))
	assert.Equal(t, "https%3A%2F%2Fx.io%2Fa%20b%3Fq%3D1%26r%3D%C3%A9", EncodeURIComponent("https://x.io/a b?q=1&r=é"))
}
