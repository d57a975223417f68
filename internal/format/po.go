package format

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/locforge/locforge/internal/model"
)

// poFormat handles a gettext PO subset: entry keys as msgids, "#."
// extracted comments, and msgstr[n] plural forms mapped to plural
// categories through the header's nplurals count.
type poFormat struct{}

func init() {
	Register(poFormat{})
}

func (poFormat) Name() string { return "po" }

func (poFormat) Extensions() []string { return []string{".po", ".pot"} }

// pluralMappings maps an nplurals count to the plural categories each
// msgstr index carries, in the conventional CLDR order.
var pluralMappings = map[int][]model.PluralCategory{
	1: {model.PluralOther},
	2: {model.PluralOne, model.PluralOther},
	3: {model.PluralOne, model.PluralFew, model.PluralOther},
	4: {model.PluralOne, model.PluralTwo, model.PluralFew, model.PluralOther},
	5: {model.PluralOne, model.PluralTwo, model.PluralFew, model.PluralMany, model.PluralOther},
	6: {model.PluralZero, model.PluralOne, model.PluralTwo, model.PluralFew, model.PluralMany, model.PluralOther},
}

var npluralsRe = regexp.MustCompile(`nplurals\s*=\s*(\d+)`)

type poEntry struct {
	comment     string
	msgid       string
	msgidPlural string
	msgstr      string
	forms       map[int]*string
	hasMsgstr   bool
}

func (poFormat) Read(info model.LanguageInfo, data []byte) (*model.ResourceFile, error) {
	rf := model.NewResourceFile(info)
	mapping := pluralMappings[2]

	var (
		cur    *poEntry
		target *string // receives continuation lines
	)
	var entries []*poEntry

	flush := func() {
		if cur != nil && (cur.msgid != "" || cur.hasMsgstr) {
			entries = append(entries, cur)
		}
		cur = nil
		target = nil
	}

	lines := strings.Split(string(data), "\n")
	for n, raw := range lines {
		line := strings.TrimSpace(raw)
		lineNo := n + 1
		fail := func(msg string) error {
			return &ParseError{Path: info.Path, Line: lineNo, Col: 1, Msg: msg}
		}

		switch {
		case line == "":
			flush()

		case strings.HasPrefix(line, "#."):
			if cur == nil {
				cur = &poEntry{}
			}
			c := strings.TrimSpace(strings.TrimPrefix(line, "#."))
			if cur.comment != "" {
				cur.comment += "\n"
			}
			cur.comment += c

		case strings.HasPrefix(line, "#"):
			// Other comment classes are ignored.

		case strings.HasPrefix(line, "msgid_plural"):
			if cur == nil {
				return nil, fail("msgid_plural before msgid")
			}
			s, err := poUnquote(strings.TrimPrefix(line, "msgid_plural"))
			if err != nil {
				return nil, fail(err.Error())
			}
			cur.msgidPlural = s
			target = &cur.msgidPlural

		case strings.HasPrefix(line, "msgid"):
			if cur != nil && (cur.hasMsgstr || cur.forms != nil) {
				flush()
			}
			if cur == nil {
				cur = &poEntry{}
			}
			s, err := poUnquote(strings.TrimPrefix(line, "msgid"))
			if err != nil {
				return nil, fail(err.Error())
			}
			cur.msgid = s
			target = &cur.msgid

		case strings.HasPrefix(line, "msgstr["):
			if cur == nil {
				return nil, fail("msgstr before msgid")
			}
			end := strings.Index(line, "]")
			if end < 0 {
				return nil, fail("malformed msgstr index")
			}
			idx, err := strconv.Atoi(line[len("msgstr["):end])
			if err != nil {
				return nil, fail("malformed msgstr index")
			}
			s, err := poUnquote(line[end+1:])
			if err != nil {
				return nil, fail(err.Error())
			}
			if cur.forms == nil {
				cur.forms = make(map[int]*string)
			}
			v := s
			cur.forms[idx] = &v
			cur.hasMsgstr = true
			target = cur.forms[idx]

		case strings.HasPrefix(line, "msgstr"):
			if cur == nil {
				return nil, fail("msgstr before msgid")
			}
			s, err := poUnquote(strings.TrimPrefix(line, "msgstr"))
			if err != nil {
				return nil, fail(err.Error())
			}
			cur.msgstr = s
			cur.hasMsgstr = true
			target = &cur.msgstr

		case strings.HasPrefix(line, `"`):
			if target == nil {
				return nil, fail("unexpected continuation line")
			}
			s, err := poUnquote(line)
			if err != nil {
				return nil, fail(err.Error())
			}
			*target += s

		default:
			return nil, fail(fmt.Sprintf("unrecognized line %q", line))
		}
	}
	flush()

	for _, pe := range entries {
		if pe.msgid == "" {
			// Header entry; pick up the plural mapping.
			if m := npluralsRe.FindStringSubmatch(pe.msgstr); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil {
					if mm, ok := pluralMappings[n]; ok {
						mapping = mm
					}
				}
			}
			continue
		}
		entry := model.ResourceEntry{Key: pe.msgid, Comment: pe.comment}
		if pe.forms != nil || pe.msgidPlural != "" {
			entry.IsPlural = true
			for idx, v := range pe.forms {
				if v == nil || *v == "" || idx >= len(mapping) {
					continue
				}
				entry.Plurals = entry.Plurals.Set(mapping[idx], *v)
			}
		} else {
			entry.Value = pe.msgstr
		}
		entry.Normalize()
		rf.Add(entry)
	}
	return rf, nil
}

func (poFormat) Write(f *model.ResourceFile) ([]byte, error) {
	mapping := writeMapping(f)

	var buf bytes.Buffer
	buf.WriteString("msgid \"\"\n")
	buf.WriteString("msgstr \"\"\n")
	if f.Language.Code != "" {
		fmt.Fprintf(&buf, "\"Language: %s\\n\"\n", f.Language.Code)
	}
	fmt.Fprintf(&buf, "\"Plural-Forms: nplurals=%d; plural=(n != 1);\\n\"\n", len(mapping))
	fmt.Fprintf(&buf, "\"Content-Type: text/plain; charset=UTF-8\\n\"\n")

	for _, e := range f.Entries {
		buf.WriteString("\n")
		if e.Comment != "" {
			for _, line := range strings.Split(e.Comment, "\n") {
				fmt.Fprintf(&buf, "#. %s\n", line)
			}
		}
		fmt.Fprintf(&buf, "msgid %s\n", strconv.Quote(e.Key))
		if !e.IsPlural {
			fmt.Fprintf(&buf, "msgstr %s\n", strconv.Quote(e.Value))
			continue
		}
		fmt.Fprintf(&buf, "msgid_plural %s\n", strconv.Quote(e.Key))
		for i, cat := range mapping {
			v, _ := e.Plurals.Get(cat)
			fmt.Fprintf(&buf, "msgstr[%d] %s\n", i, strconv.Quote(v))
		}
	}
	return buf.Bytes(), nil
}

// writeMapping picks the smallest standard nplurals mapping covering
// every plural category used in the file.
func writeMapping(f *model.ResourceFile) []model.PluralCategory {
	used := map[model.PluralCategory]bool{}
	for _, e := range f.Entries {
		for _, form := range e.Plurals {
			used[form.Category] = true
		}
	}
	for n := 2; n <= 6; n++ {
		m := pluralMappings[n]
		covered := map[model.PluralCategory]bool{}
		for _, c := range m {
			covered[c] = true
		}
		ok := true
		for c := range used {
			if !covered[c] {
				ok = false
				break
			}
		}
		if ok {
			return m
		}
	}
	return pluralMappings[6]
}

func poUnquote(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || !strings.HasPrefix(s, `"`) || !strings.HasSuffix(s, `"`) {
		return "", fmt.Errorf("expected quoted string, got %q", s)
	}
	out, err := strconv.Unquote(s)
	if err != nil {
		return "", fmt.Errorf("malformed quoted string %q", s)
	}
	return out, nil
}
