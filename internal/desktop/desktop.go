// Package desktop reads and rewrites freedesktop.org desktop entry files.
package desktop

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"unicode"
)

const EntryGroup = "Desktop Entry"

// File holds the parsed groups of a desktop entry. Data[group][key] = value.
type File struct {
	Data map[string]map[string]string
}

// Parse reads a .desktop file from r. Comments, blank lines and keys outside
// any group are skipped.
func Parse(r io.Reader) (*File, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	f := &File{Data: make(map[string]map[string]string)}
	group := ""

	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		line = trimBOM(line)
		line = strings.TrimLeftFunc(line, unicode.IsSpace)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if line[0] == '[' && strings.HasSuffix(line, "]") {
			group = strings.TrimSpace(line[1 : len(line)-1])
			if group == "" {
				return nil, errors.New("empty group name")
			}
			if _, ok := f.Data[group]; !ok {
				f.Data[group] = make(map[string]string)
			}
			continue
		}
		if group == "" {
			continue
		}

		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		f.Data[group][key] = strings.TrimSpace(v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return f, nil
}

// HasEntry reports whether the file declares a [Desktop Entry] group.
func (f *File) HasEntry() bool {
	_, ok := f.Data[EntryGroup]
	return ok
}

// Get returns the raw value for group/key.
func (f *File) Get(group, key string) (string, bool) {
	m, ok := f.Data[group]
	if !ok {
		return "", false
	}
	v, ok := m[key]
	return v, ok
}

// Name is the unlocalized Name of the [Desktop Entry] group.
func (f *File) Name() string {
	v, _ := f.Get(EntryGroup, "Name")
	return v
}

// Rewrite points every Exec= line at execPath, keeping the arguments that
// followed the original command, and every Icon= line at iconPath. An empty
// iconPath leaves Icon= lines untouched. All other lines pass through.
func Rewrite(content, execPath, iconPath string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		indent := line[:len(line)-len(strings.TrimLeftFunc(line, unicode.IsSpace))]
		body := line[len(indent):]

		switch {
		case strings.HasPrefix(body, "Exec="):
			value := strings.TrimRight(strings.TrimPrefix(body, "Exec="), "\r")
			lines[i] = indent + "Exec=" + quoteExec(execPath) + execArgs(value) + carriageReturn(line)
		case strings.HasPrefix(body, "Icon=") && iconPath != "":
			lines[i] = indent + "Icon=" + iconPath + carriageReturn(line)
		}
	}
	return strings.Join(lines, "\n")
}

// execArgs returns everything from the first space of value, or "".
func execArgs(value string) string {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, `"`) {
		if end := strings.Index(value[1:], `"`); end >= 0 {
			return strings.TrimRightFunc(value[end+2:], unicode.IsSpace)
		}
	}
	if i := strings.IndexByte(value, ' '); i >= 0 {
		return value[i:]
	}
	return ""
}

// quoteExec quotes a program path that would otherwise split into several
// arguments.
func quoteExec(path string) string {
	if !strings.ContainsAny(path, " \t\"") {
		return path
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`", "$", `\$`)
	return `"` + r.Replace(path) + `"`
}

func carriageReturn(line string) string {
	if strings.HasSuffix(line, "\r") {
		return "\r"
	}
	return ""
}

func trimBOM(s string) string {
	return strings.TrimPrefix(s, "\ufeff")
}
