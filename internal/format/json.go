package format

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/locforge/locforge/internal/model"
)

// jsonFormat is the flat JSON dialect: a top-level object mapping keys
// to either a string value or an object of plural-category forms. The
// reserved "_comment" member carries the entry comment; "value" carries
// a non-plural value when a comment forces the object form.
//
//	{
//	  "Welcome": "Hello",
//	  "Apples": {"_comment": "count label", "one": "an apple", "other": "apples"}
//	}
type jsonFormat struct{}

func init() {
	Register(jsonFormat{})
}

func (jsonFormat) Name() string { return "json" }

func (jsonFormat) Extensions() []string { return []string{".json"} }

const (
	jsonCommentKey = "_comment"
	jsonValueKey   = "value"
)

func (jsonFormat) Read(info model.LanguageInfo, data []byte) (*model.ResourceFile, error) {
	rf := model.NewResourceFile(info)
	dec := json.NewDecoder(bytes.NewReader(data))

	fail := func(msg string) error {
		line, col := lineCol(data, dec.InputOffset())
		return &ParseError{Path: info.Path, Line: line, Col: col, Msg: msg}
	}

	tok, err := dec.Token()
	if err != nil {
		return nil, fail(fmt.Sprintf("invalid JSON: %v", err))
	}
	if tok != json.Delim('{') {
		return nil, fail("top-level value must be an object")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fail(fmt.Sprintf("invalid JSON: %v", err))
		}
		key, _ := keyTok.(string)

		valTok, err := dec.Token()
		if err != nil {
			return nil, fail(fmt.Sprintf("invalid JSON: %v", err))
		}
		switch v := valTok.(type) {
		case string:
			rf.Add(model.ResourceEntry{Key: key, Value: v})
		case json.Delim:
			if v != json.Delim('{') {
				return nil, fail(fmt.Sprintf("entry %q: value must be a string or object", key))
			}
			entry, err := readJSONObject(dec, key, fail)
			if err != nil {
				return nil, err
			}
			rf.Add(*entry)
		default:
			return nil, fail(fmt.Sprintf("entry %q: value must be a string or object", key))
		}
	}

	if _, err := dec.Token(); err != nil {
		return nil, fail(fmt.Sprintf("invalid JSON: %v", err))
	}
	return rf, nil
}

func readJSONObject(dec *json.Decoder, key string, fail func(string) error) (*model.ResourceEntry, error) {
	entry := model.ResourceEntry{Key: key}
	for dec.More() {
		kTok, err := dec.Token()
		if err != nil {
			return nil, fail(fmt.Sprintf("invalid JSON: %v", err))
		}
		k, _ := kTok.(string)
		vTok, err := dec.Token()
		if err != nil {
			return nil, fail(fmt.Sprintf("invalid JSON: %v", err))
		}
		v, ok := vTok.(string)
		if !ok {
			return nil, fail(fmt.Sprintf("entry %q: member %q must be a string", key, k))
		}
		switch k {
		case jsonCommentKey:
			entry.Comment = v
		case jsonValueKey:
			entry.Value = v
		default:
			entry.IsPlural = true
			entry.Plurals = entry.Plurals.Set(model.PluralCategory(k), v)
		}
	}
	if _, err := dec.Token(); err != nil { // closing brace
		return nil, fail(fmt.Sprintf("invalid JSON: %v", err))
	}
	entry.Normalize()
	return &entry, nil
}

func (jsonFormat) Write(f *model.ResourceFile) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, e := range f.Entries {
		buf.WriteString("  ")
		writeJSONString(&buf, e.Key)
		buf.WriteString(": ")
		switch {
		case !e.IsPlural && e.Comment == "":
			writeJSONString(&buf, e.Value)
		case !e.IsPlural:
			buf.WriteString("{")
			writeJSONString(&buf, jsonCommentKey)
			buf.WriteString(": ")
			writeJSONString(&buf, e.Comment)
			buf.WriteString(", ")
			writeJSONString(&buf, jsonValueKey)
			buf.WriteString(": ")
			writeJSONString(&buf, e.Value)
			buf.WriteString("}")
		default:
			buf.WriteString("{")
			first := true
			if e.Comment != "" {
				writeJSONString(&buf, jsonCommentKey)
				buf.WriteString(": ")
				writeJSONString(&buf, e.Comment)
				first = false
			}
			for _, form := range e.Plurals {
				if !first {
					buf.WriteString(", ")
				}
				first = false
				writeJSONString(&buf, string(form.Category))
				buf.WriteString(": ")
				writeJSONString(&buf, form.Value)
			}
			buf.WriteString("}")
		}
		if i < len(f.Entries)-1 {
			buf.WriteString(",")
		}
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

func writeJSONString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}
