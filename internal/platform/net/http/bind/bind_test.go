package bind

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	perr "instapilot/internal/platform/errors"
)

type previewBody struct {
	AccountID string `json:"account_id" validate:"required"`
	Class     string `json:"class" validate:"required,oneof=comment dm mention"`
	Text      string `json:"text" validate:"max=10"`
}

func parse(body string) (previewBody, error) {
	r := httptest.NewRequest(http.MethodPost, "/automation/preview", strings.NewReader(body))
	return ParseJSON[previewBody](r)
}

func TestParseJSONAccepts(t *testing.T) {
	got, err := parse(`{"account_id":"acc-1","class":"dm","text":"price?"}`)
	if err != nil || got.Class != "dm" || got.Text != "price?" {
		t.Fatalf("unexpected %+v %v", got, err)
	}
}

func TestParseJSONRejectsMalformed(t *testing.T) {
	for name, body := range map[string]string{
		"empty":    "",
		"broken":   `{"account_id":`,
		"unknown":  `{"account_id":"a","class":"dm","extra":1}`,
		"trailing": `{"account_id":"a","class":"dm"} {}`,
	} {
		if _, err := parse(body); !perr.IsCode(err, perr.ErrorCodeJSON) {
			t.Fatalf("%s: want json error, got %v", name, err)
		}
	}
}

func TestParseJSONNamesField(t *testing.T) {
	cases := map[string]struct{ body, field, msg string }{
		"required": {`{"class":"dm"}`, "account_id", "account_id is a required field"},
		"oneof":    {`{"account_id":"a","class":"story"}`, "class", "class must be one of [comment dm mention]"},
		"max":      {`{"account_id":"a","class":"dm","text":"far too long"}`, "text", "text must be at most 10 characters"},
	}
	for name, c := range cases {
		_, err := parse(c.body)
		if !perr.IsCode(err, perr.ErrorCodeValidation) {
			t.Fatalf("%s: want validation error, got %v", name, err)
		}
		w := perr.WireFrom(err)
		if w.Field != c.field || w.Message != c.msg {
			t.Fatalf("%s: got field=%q msg=%q", name, w.Field, w.Message)
		}
	}
}

func TestFieldAndMessageForeignError(t *testing.T) {
	if f, m := FieldAndMessage(errors.New("boom")); f != "" || m != "boom" {
		t.Fatalf("unexpected %q %q", f, m)
	}
	if f, m := FieldAndMessage(nil); f != "" || m != "" {
		t.Fatalf("nil should be blank")
	}
}
