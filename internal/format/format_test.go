package format

import (
	"errors"
	"testing"

	"github.com/locforge/locforge/internal/model"
)

func enInfo(path string) model.LanguageInfo {
	return model.LanguageInfo{BaseName: "strings", Code: "en", Path: path}
}

func TestByPath(t *testing.T) {
	tests := []struct {
		path     string
		wantName string
		wantErr  bool
	}{
		{"strings.json", "json", false},
		{"strings.de.JSON", "json", false},
		{"messages.po", "po", false},
		{"template.pot", "po", false},
		{"strings.yaml", "", true},
		{"strings", "", true},
	}
	for _, tt := range tests {
		f, err := ByPath(tt.path)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ByPath(%q) expected error", tt.path)
			}
			continue
		}
		if err != nil {
			t.Errorf("ByPath(%q) error = %v", tt.path, err)
			continue
		}
		if f.Name() != tt.wantName {
			t.Errorf("ByPath(%q).Name() = %q, want %q", tt.path, f.Name(), tt.wantName)
		}
	}
}

func TestJSONRead(t *testing.T) {
	data := []byte(`{
  "Welcome": "Hello",
  "Farewell": {"_comment": "shown on logout", "value": "Goodbye"},
  "Apples": {"_comment": "count label", "one": "an apple", "other": "%d apples"}
}`)
	f, err := jsonFormat{}.Read(enInfo("strings.json"), data)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(f.Entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(f.Entries))
	}

	e := f.Entries[0]
	if e.Key != "Welcome" || e.Value != "Hello" || e.IsPlural {
		t.Errorf("entry 0 = %+v", e)
	}
	e = f.Entries[1]
	if e.Value != "Goodbye" || e.Comment != "shown on logout" || e.IsPlural {
		t.Errorf("entry 1 = %+v", e)
	}
	e = f.Entries[2]
	if !e.IsPlural || e.Comment != "count label" {
		t.Errorf("entry 2 = %+v", e)
	}
	if v, _ := e.Plurals.Get(model.PluralOne); v != "an apple" {
		t.Errorf("one = %q", v)
	}
	if e.Value != "%d apples" {
		t.Errorf("display value = %q, want the other form", e.Value)
	}
}

func TestJSONReadErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{"a": `},
		{"array top level", `[1,2]`},
		{"number value", `{"a": 3}`},
		{"nested non-string", `{"a": {"one": 3}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := jsonFormat{}.Read(enInfo("strings.json"), []byte(tt.data))
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("error = %v, want *ParseError", err)
			}
			if perr.Path != "strings.json" || perr.Line < 1 {
				t.Errorf("ParseError = %+v, want path and position", perr)
			}
		})
	}
}

func TestJSONRoundTrip(t *testing.T) {
	f := model.NewResourceFile(enInfo("strings.json"))
	f.Add(model.ResourceEntry{Key: "Welcome", Value: "Hello"})
	f.Add(model.ResourceEntry{Key: "Farewell", Value: "Goodbye", Comment: "logout"})
	plural := model.ResourceEntry{Key: "Apples", IsPlural: true,
		Plurals: model.PluralForms{}.Set(model.PluralOther, "%d apples").Set(model.PluralOne, "an apple")}
	plural.Normalize()
	f.Add(plural)
	// A true duplicate must survive the trip as a countable occurrence.
	f.Add(model.ResourceEntry{Key: "Welcome", Value: "Hello again"})

	data, err := jsonFormat{}.Write(f)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	back, err := jsonFormat{}.Read(f.Language, data)
	if err != nil {
		t.Fatalf("Read(Write()) error = %v", err)
	}
	if len(back.Entries) != len(f.Entries) {
		t.Fatalf("entries = %d, want %d", len(back.Entries), len(f.Entries))
	}
	for i := range f.Entries {
		if !back.Entries[i].Equal(f.Entries[i]) {
			t.Errorf("entry %d = %+v, want %+v", i, back.Entries[i], f.Entries[i])
		}
	}
}

func TestPORead(t *testing.T) {
	data := []byte(`msgid ""
msgstr ""
"Language: pl\n"
"Plural-Forms: nplurals=3; plural=(n==1 ? 0 : n%10>=2 && n%10<=4 ? 1 : 2);\n"

#. greeting shown at startup
msgid "Welcome"
msgstr "Witaj"

msgid "Apples"
msgid_plural "Apples"
msgstr[0] "jablko"
msgstr[1] "jablka"
msgstr[2] "jablek"
`)
	info := model.LanguageInfo{BaseName: "strings", Code: "pl", Path: "strings.pl.po"}
	f, err := poFormat{}.Read(info, data)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(f.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(f.Entries))
	}
	if f.Entries[0].Value != "Witaj" || f.Entries[0].Comment != "greeting shown at startup" {
		t.Errorf("entry 0 = %+v", f.Entries[0])
	}
	apples := f.Entries[1]
	if !apples.IsPlural {
		t.Fatalf("entry 1 not plural: %+v", apples)
	}
	for cat, want := range map[model.PluralCategory]string{
		model.PluralOne:   "jablko",
		model.PluralFew:   "jablka",
		model.PluralOther: "jablek",
	} {
		if v, _ := apples.Plurals.Get(cat); v != want {
			t.Errorf("form %s = %q, want %q", cat, v, want)
		}
	}
}

func TestPOContinuationLines(t *testing.T) {
	data := []byte(`msgid "Long"
msgstr "first "
"second"
`)
	f, err := poFormat{}.Read(enInfo("strings.po"), data)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if f.Entries[0].Value != "first second" {
		t.Errorf("value = %q, want joined continuation", f.Entries[0].Value)
	}
}

func TestPOReadErrors(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantLine int
	}{
		{"msgstr without msgid", "msgstr \"x\"\n", 1},
		{"bare continuation", "\"x\"\n", 1},
		{"unterminated string", "msgid \"x\nmsgstr \"y\"\n", 1},
		{"garbage line", "msgid \"a\"\nmsgstr \"b\"\nwhat is this\n", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := poFormat{}.Read(enInfo("strings.po"), []byte(tt.data))
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("error = %v, want *ParseError", err)
			}
			if perr.Line != tt.wantLine {
				t.Errorf("line = %d, want %d", perr.Line, tt.wantLine)
			}
		})
	}
}

func TestPORoundTrip(t *testing.T) {
	f := model.NewResourceFile(model.LanguageInfo{BaseName: "strings", Code: "de", Path: "strings.de.po"})
	f.Add(model.ResourceEntry{Key: "Welcome", Value: "Willkommen", Comment: "greeting"})
	plural := model.ResourceEntry{Key: "Apples", IsPlural: true,
		Plurals: model.PluralForms{}.Set(model.PluralOne, "ein Apfel").Set(model.PluralOther, "%d Apfel")}
	plural.Normalize()
	f.Add(plural)

	data, err := poFormat{}.Write(f)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	back, err := poFormat{}.Read(f.Language, data)
	if err != nil {
		t.Fatalf("Read(Write()) error = %v", err)
	}
	if len(back.Entries) != len(f.Entries) {
		t.Fatalf("entries = %d, want %d", len(back.Entries), len(f.Entries))
	}
	for i := range f.Entries {
		if !back.Entries[i].Equal(f.Entries[i]) {
			t.Errorf("entry %d = %+v, want %+v", i, back.Entries[i], f.Entries[i])
		}
	}
}
